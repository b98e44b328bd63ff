package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"navconsole/internal/database"
	"navconsole/internal/model"
	"navconsole/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewConnection("sqlite", "file::memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedPermission(t *testing.T, repo PermissionRepository, name, code string) *model.Permission {
	t.Helper()
	p := &model.Permission{Name: name, Code: code, Type: model.PermissionTypeAPI}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestUserRepositoryConflictExcludesSelf(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	alice := &model.User{Account: "alice", Email: "alice@example.com", Password: "x", Status: model.StatusActive}
	require.NoError(t, repo.Create(ctx, alice))

	found, err := repo.FindConflict(ctx, "bob", "alice@example.com", uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)

	_, err = repo.FindConflict(ctx, "alice", "alice@example.com", alice.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestUserRepositoryUniqueIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, &model.User{Account: "alice", Email: "a@example.com", Password: "x", Status: model.StatusActive}))
	err := repo.Create(ctx, &model.User{Account: "alice", Email: "b@example.com", Password: "x", Status: model.StatusActive})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestUserRepositoryListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	for _, u := range []model.User{
		{Account: "alice", Email: "alice@corp.io", Password: "x", Status: model.StatusActive},
		{Account: "alfred", Email: "alfred@corp.io", Password: "x", Status: model.StatusDisabled},
		{Account: "bob", Email: "bob@home.net", Password: "x", Status: model.StatusActive},
	} {
		u := u
		require.NoError(t, repo.Create(ctx, &u))
	}

	users, total, err := repo.List(ctx, UserFilter{Account: "AL"}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	disabled := model.StatusDisabled
	users, total, err = repo.List(ctx, UserFilter{Status: &disabled}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "alfred", users[0].Account)

	users, total, err = repo.List(ctx, UserFilter{Email: "corp"}, pagination.New(2, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 1)
}

func TestReplaceRolesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	roles := NewRoleRepository(db)

	u := &model.User{Account: "alice", Email: "alice@example.com", Password: "x", Status: model.StatusActive}
	require.NoError(t, users.Create(ctx, u))
	editor := &model.Role{Name: "editor", Status: model.StatusActive}
	viewer := &model.Role{Name: "viewer", Status: model.StatusActive}
	require.NoError(t, roles.Create(ctx, editor))
	require.NoError(t, roles.Create(ctx, viewer))

	want := []uuid.UUID{editor.ID, viewer.ID, editor.ID}
	require.NoError(t, users.ReplaceRoles(ctx, u.ID, want))
	require.NoError(t, users.ReplaceRoles(ctx, u.ID, want))

	ids, err := users.RoleIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{editor.ID, viewer.ID}, ids)

	require.NoError(t, users.ReplaceRoles(ctx, u.ID, []uuid.UUID{viewer.ID}))
	linked, err := roles.ListByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "viewer", linked[0].Name)

	holders, err := users.IDsByRole(ctx, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u.ID}, holders)
}

func TestRoleRepositoryLoadPermissions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	roles := NewRoleRepository(db)
	perms := NewPermissionRepository(db)

	read := seedPermission(t, perms, "Read users", "user:read")
	create := seedPermission(t, perms, "Create users", "user:create")

	editor := &model.Role{Name: "editor", Status: model.StatusActive}
	empty := &model.Role{Name: "empty", Status: model.StatusActive}
	require.NoError(t, roles.Create(ctx, editor))
	require.NoError(t, roles.Create(ctx, empty))
	require.NoError(t, roles.ReplacePermissions(ctx, editor.ID, []uuid.UUID{read.ID, create.ID}))

	list := []model.Role{*editor, *empty}
	require.NoError(t, roles.LoadPermissions(ctx, list))
	assert.Len(t, list[0].Permissions, 2)
	assert.NotNil(t, list[1].Permissions)
	assert.Empty(t, list[1].Permissions)

	holders, err := perms.RoleIDs(ctx, read.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{editor.ID}, holders)
}

func TestDeletePermissionRemovesLinks(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	roles := NewRoleRepository(db)
	perms := NewPermissionRepository(db)

	read := seedPermission(t, perms, "Read users", "user:read")
	keep := seedPermission(t, perms, "Read roles", "role:read")
	editor := &model.Role{Name: "editor", Status: model.StatusActive}
	require.NoError(t, roles.Create(ctx, editor))
	require.NoError(t, roles.ReplacePermissions(ctx, editor.ID, []uuid.UUID{read.ID, keep.ID}))

	require.NoError(t, perms.Delete(ctx, read.ID))

	list := []model.Role{*editor}
	require.NoError(t, roles.LoadPermissions(ctx, list))
	require.Len(t, list[0].Permissions, 1)
	assert.Equal(t, "role:read", list[0].Permissions[0].Code)
}

func TestDeleteRoleRemovesLinks(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	roles := NewRoleRepository(db)
	perms := NewPermissionRepository(db)

	u := &model.User{Account: "alice", Email: "alice@example.com", Password: "x", Status: model.StatusActive}
	require.NoError(t, users.Create(ctx, u))
	read := seedPermission(t, perms, "Read users", "user:read")
	editor := &model.Role{Name: "editor", Status: model.StatusActive}
	require.NoError(t, roles.Create(ctx, editor))
	require.NoError(t, users.ReplaceRoles(ctx, u.ID, []uuid.UUID{editor.ID}))
	require.NoError(t, roles.ReplacePermissions(ctx, editor.ID, []uuid.UUID{read.ID}))

	require.NoError(t, roles.Delete(ctx, editor.ID))

	ids, err := users.RoleIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	var count int64
	require.NoError(t, db.Model(&model.RolePermission{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPermissionRepositoryFindConflict(t *testing.T) {
	ctx := context.Background()
	perms := NewPermissionRepository(newTestDB(t))
	read := seedPermission(t, perms, "Read users", "user:read")

	found, err := perms.FindConflict(ctx, "Other", "user:read", uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, read.ID, found.ID)

	_, err = perms.FindConflict(ctx, "Read users", "user:read", read.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	byCode, err := perms.FindByCodes(ctx, []string{"user:read", "missing"})
	require.NoError(t, err)
	assert.Len(t, byCode, 1)
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tx := NewTransactionManager(db)
	roles := NewRoleRepository(db)

	boom := errors.New("boom")
	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, roles.Create(txCtx, &model.Role{Name: "temp", Status: model.StatusActive}))
		return tx.RunInTx(txCtx, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	_, err = roles.FindByName(ctx, "temp")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAuditRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(newTestDB(t))

	require.NoError(t, repo.Log(ctx, &model.AuditLog{Action: model.ActionCreateUser, EntityID: "1"}))
	require.NoError(t, repo.Log(ctx, &model.AuditLog{Action: model.ActionDeleteUser, EntityID: "1"}))
	require.NoError(t, repo.Log(ctx, &model.AuditLog{Action: model.ActionCreateRole, EntityID: "2"}))

	logs, total, err := repo.List(ctx, AuditFilter{EntityID: "1"}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, logs, 2)
}
