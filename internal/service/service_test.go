package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"navconsole/internal/database"
	"navconsole/internal/model"
	"navconsole/internal/repository"
	"navconsole/internal/session"
	"navconsole/pkg/pagination"
)

type recordingRevoker struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingRevoker) RevokeUsers(_ context.Context, ids ...uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (n *recordingNotifier) Publish(event interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ev, ok := event.(ChangeEvent); ok {
		n.events = append(n.events, ev)
	}
}

type fixture struct {
	db       *gorm.DB
	users    UserService
	roles    RoleService
	perms    PermissionService
	auth     AuthService
	seed     SeedService
	audit    AuditService
	revoker  *recordingRevoker
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewConnection("sqlite", "file::memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tx := repository.NewTransactionManager(db)

	issuer, err := session.NewIssuer(session.Options{
		Secret: []byte("test-secret"),
		Issuer: "navconsole",
		TTL:    30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	sessions := session.NewAuthenticator(issuer, session.NewMemoryDenyList(30*24*time.Hour))

	f := &fixture{db: db, revoker: &recordingRevoker{}, notifier: &recordingNotifier{}}
	f.users = NewUserService(userRepo, roleRepo, auditRepo, tx, f.revoker, f.notifier)
	f.roles = NewRoleService(roleRepo, permRepo, userRepo, auditRepo, tx, f.revoker, f.notifier)
	f.perms = NewPermissionService(permRepo, auditRepo, tx, f.notifier)
	f.auth = NewAuthService(userRepo, roleRepo, auditRepo, sessions)
	f.seed = NewSeedService(userRepo, roleRepo, permRepo, tx)
	f.audit = NewAuditService(auditRepo, userRepo)
	return f
}

func (f *fixture) permission(t *testing.T, code string) *PermissionResponse {
	t.Helper()
	p, err := f.perms.CreatePermission(context.Background(), CreatePermissionRequest{
		Name: "perm " + code, Code: code, Type: model.PermissionTypeAPI,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) role(t *testing.T, name string, perms ...string) *RoleResponse {
	t.Helper()
	r, err := f.roles.CreateRole(context.Background(), CreateRoleRequest{Name: name, Permissions: perms})
	require.NoError(t, err)
	return r
}

func (f *fixture) user(t *testing.T, account string, roles ...string) *UserResponse {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), CreateUserRequest{
		Account: account, Password: "secret1", Email: account + "@x.com", Roles: roles,
	})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func TestScenarioViewerLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.perms.CreatePermission(ctx, CreatePermissionRequest{Name: "读用户", Code: "user:read", Type: model.PermissionTypeAPI})
	require.NoError(t, err)
	viewer := f.role(t, "查看者", "user:read")
	require.Len(t, viewer.Permissions, 1)

	alice, err := f.users.CreateUser(ctx, CreateUserRequest{
		Account: "alice", Password: "secret1", Email: "a@x.com", Roles: []string{viewer.ID},
	})
	require.NoError(t, err)
	require.Len(t, alice.Roles, 1)

	res, err := f.auth.Login(ctx, LoginRequest{Account: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.Credential.HasPermission("user:read"))
	assert.False(t, res.Credential.HasPermission("user:create"))

	_, err = f.auth.Login(ctx, LoginRequest{Account: "alice", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = f.auth.Login(ctx, LoginRequest{Account: "nobody", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "alice")

	_, err := f.auth.Authenticate(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.auth.Authenticate(ctx, "alice", "nope-nope")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	u, err := f.auth.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Empty(t, u.Roles)
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	_, err := f.users.UpdateUser(ctx, alice.ID, UpdateUserRequest{Status: ptr(model.StatusDisabled)})
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, LoginRequest{Account: "alice", Password: "secret1"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, f.revoker.ids, uuid.MustParse(alice.ID))
}

func TestLoginFlattensPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, code := range []string{"a:read", "b:read", "c:read", "d:read"} {
		f.permission(t, code)
	}
	r1 := f.role(t, "r1", "a:read", "b:read")
	r2 := f.role(t, "r2", "b:read", "c:read")
	off, err := f.roles.CreateRole(ctx, CreateRoleRequest{Name: "off", Status: model.StatusDisabled, Permissions: []string{"d:read"}})
	require.NoError(t, err)
	f.user(t, "alice", r1.ID, r2.Name, off.ID)

	res, err := f.auth.Login(ctx, LoginRequest{Account: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a:read", "b:read", "c:read"}, res.Credential.PermissionCodes())
	assert.Len(t, res.Credential.Roles, 2)
}

func TestCreateUserUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "alice")

	_, err := f.users.CreateUser(ctx, CreateUserRequest{Account: "alice", Password: "secret1", Email: "other@x.com"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.users.CreateUser(ctx, CreateUserRequest{Account: "bob", Password: "secret1", Email: "alice@x.com"})
	assert.ErrorIs(t, err, ErrConflict)

	_, total, err := f.users.ListUsers(ctx, repository.UserFilter{}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestUpdateUserConflictExcludesSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	f.user(t, "bob")

	updated, err := f.users.UpdateUser(ctx, alice.ID, UpdateUserRequest{Account: ptr("alice"), Email: ptr("alice@x.com")})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Account)

	_, err = f.users.UpdateUser(ctx, alice.ID, UpdateUserRequest{Account: ptr("bob")})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.users.UpdateUser(ctx, alice.ID, UpdateUserRequest{Password: ptr("newsecret")})
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, "alice", "newsecret")
	assert.NoError(t, err)
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.CreateUser(ctx, CreateUserRequest{Account: "", Password: "secret1", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.users.CreateUser(ctx, CreateUserRequest{Account: "alice", Password: "123", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.users.CreateUser(ctx, CreateUserRequest{Account: "alice", Password: "secret1", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.users.CreateUser(ctx, CreateUserRequest{Account: "alice", Password: "secret1", Email: "a@x.com", Status: 7})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.users.CreateUser(ctx, CreateUserRequest{Account: "alice", Password: "secret1", Email: "a@x.com", Roles: []string{"ghost"}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, total, err := f.users.ListUsers(ctx, repository.UserFilter{}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPermissionUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	read := f.permission(t, "user:read")

	_, err := f.perms.CreatePermission(ctx, CreatePermissionRequest{Name: "another", Code: "user:read", Type: model.PermissionTypeAPI})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.perms.CreatePermission(ctx, CreatePermissionRequest{Name: read.Name, Code: "user:list", Type: model.PermissionTypeAPI})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.perms.CreatePermission(ctx, CreatePermissionRequest{Name: "x", Code: "x", Type: "widget"})
	assert.ErrorIs(t, err, ErrValidation)

	updated, err := f.perms.UpdatePermission(ctx, read.ID, UpdatePermissionRequest{Code: ptr("user:read"), Type: ptr(model.PermissionTypeButton)})
	require.NoError(t, err)
	assert.Equal(t, model.PermissionTypeButton, updated.Type)
}

func TestUpdateRolePermissionsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.permission(t, "a:read")
	f.permission(t, "b:read")
	r := f.role(t, "editor")

	req := UpdateRolePermissionsRequest{Permissions: []string{a.ID, "b:read", "a:read"}}
	first, err := f.roles.UpdateRolePermissions(ctx, r.ID, req)
	require.NoError(t, err)
	second, err := f.roles.UpdateRolePermissions(ctx, r.ID, req)
	require.NoError(t, err)

	assert.Len(t, second.Permissions, 2)
	assert.ElementsMatch(t, codesOf(first.Permissions), codesOf(second.Permissions))

	var rows int64
	require.NoError(t, f.db.Model(&model.RolePermission{}).Where("role_id = ?", r.ID).Count(&rows).Error)
	assert.EqualValues(t, 2, rows)

	_, err = f.roles.UpdateRolePermissions(ctx, r.ID, UpdateRolePermissionsRequest{Permissions: []string{"a:read", "missing"}})
	assert.ErrorIs(t, err, ErrNotFound)
	again, err := f.roles.GetRole(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, again.Permissions, 2, "failed replace must leave the previous set")
}

func codesOf(perms []PermissionResponse) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.Code)
	}
	return out
}

func TestDeleteRoleCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.permission(t, "user:read")
	r := f.role(t, "viewer", "user:read")
	alice := f.user(t, "alice", r.ID)

	require.NoError(t, f.roles.DeleteRole(ctx, r.ID))
	assert.Contains(t, f.revoker.ids, uuid.MustParse(alice.ID))

	u, err := f.auth.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Empty(t, u.Roles)

	var rows int64
	require.NoError(t, f.db.Model(&model.RolePermission{}).Count(&rows).Error)
	assert.Zero(t, rows)

	err = f.roles.DeleteRole(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisableRoleRevokesHolders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.role(t, "viewer")
	alice := f.user(t, "alice", r.ID)
	bob := f.user(t, "bob")

	_, err := f.roles.UpdateRole(ctx, r.ID, UpdateRoleRequest{Description: ptr("read only")})
	require.NoError(t, err)
	assert.Empty(t, f.revoker.ids)

	updated, err := f.roles.UpdateRole(ctx, r.ID, UpdateRoleRequest{Status: ptr(model.StatusDisabled)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisabled, updated.Status)
	assert.Equal(t, []uuid.UUID{uuid.MustParse(alice.ID)}, f.revoker.ids)
	assert.NotContains(t, f.revoker.ids, uuid.MustParse(bob.ID))
}

func TestRoleNameConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.role(t, "viewer")
	editor := f.role(t, "editor")

	_, err := f.roles.CreateRole(ctx, CreateRoleRequest{Name: "viewer"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.roles.UpdateRole(ctx, editor.ID, UpdateRoleRequest{Name: ptr("viewer")})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.roles.UpdateRole(ctx, editor.ID, UpdateRoleRequest{Name: ptr("editor")})
	assert.NoError(t, err)
}

func TestDeletePermissionDropsItFromRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	read := f.permission(t, "user:read")
	f.permission(t, "user:create")
	r := f.role(t, "editor", "user:read", "user:create")

	require.NoError(t, f.perms.DeletePermission(ctx, read.ID))

	got, err := f.roles.GetRole(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:create"}, codesOf(got.Permissions))

	_, err = f.perms.GetPermission(ctx, read.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetWithMalformedID(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.GetUser(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	codes := []string{"user:read", "user:create"}
	admin := SeedAdmin{Account: "admin", Password: "admin123", Email: "admin@x.com"}

	require.NoError(t, f.seed.Seed(ctx, codes, admin))
	require.NoError(t, f.seed.Seed(ctx, codes, admin))

	perms, total, err := f.perms.ListPermissions(ctx, repository.PermissionFilter{}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, perms, 2)

	res, err := f.auth.Login(ctx, LoginRequest{Account: "admin", Password: "admin123"})
	require.NoError(t, err)
	assert.ElementsMatch(t, codes, res.Credential.PermissionCodes())
	require.Len(t, res.Credential.Roles, 1)
	assert.Equal(t, AdminRoleName, res.Credential.Roles[0].Name)
}

func TestMutationsAreAuditedAndBroadcast(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	ctx := WithActor(context.Background(), uuid.MustParse(alice.ID))

	_, err := f.perms.CreatePermission(ctx, CreatePermissionRequest{Name: "r", Code: "user:read", Type: model.PermissionTypeAPI})
	require.NoError(t, err)

	logs, total, err := f.audit.GetAuditLogs(ctx, repository.AuditFilter{Action: model.ActionCreatePermission}, pagination.New(1, 10))
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "alice", logs[0].Account)
	assert.Equal(t, "user:read", logs[0].EntityName)

	logs, _, err = f.audit.GetAuditLogs(ctx, repository.AuditFilter{Action: model.ActionCreateUser}, pagination.New(1, 10))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "System", logs[0].Account)

	require.Len(t, f.notifier.events, 2)
	assert.Equal(t, model.ActionCreatePermission, f.notifier.events[1].Action)
	assert.Equal(t, alice.ID, f.notifier.events[1].ActorID)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "alice")

	res, err := f.auth.Login(ctx, LoginRequest{Account: "alice", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(ctx, res.Credential))

	refreshed, err := f.auth.Refresh(ctx, res.Credential)
	require.NoError(t, err)
	assert.NotEqual(t, res.Token, refreshed.Token)

	assert.ErrorIs(t, f.auth.Logout(ctx, nil), ErrUnauthorized)
}
