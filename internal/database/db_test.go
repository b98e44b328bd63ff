package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"

	"navconsole/internal/model"
)

func TestPing(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()
	assert.NoError(t, Ping(context.Background(), sqlDB))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = Ping(context.Background(), sqlDB)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnectionRejectsUnknownDriver(t *testing.T) {
	_, err := NewConnection("oracle", "whatever", nil)
	require.Error(t, err)
}

func TestNewConnectionSQLiteCascades(t *testing.T) {
	db, err := NewConnection("sqlite", "file::memory:", nil)
	require.NoError(t, err)

	role := model.Role{Name: "viewer", Status: model.StatusActive}
	perm := model.Permission{Name: "read users", Code: "user:read", Type: model.PermissionTypeAPI}
	require.NoError(t, db.Create(&role).Error)
	require.NoError(t, db.Create(&perm).Error)
	require.NoError(t, db.Omit(clause.Associations).Create(&model.RolePermission{RoleID: role.ID, PermissionID: perm.ID}).Error)

	require.NoError(t, db.Delete(&model.Permission{}, "id = ?", perm.ID).Error)

	var count int64
	require.NoError(t, db.Model(&model.RolePermission{}).Where("role_id = ?", role.ID).Count(&count).Error)
	assert.Zero(t, count)
}
