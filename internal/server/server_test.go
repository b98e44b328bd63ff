package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navconsole/internal/config"
	"navconsole/internal/database"
	"navconsole/internal/metrics"
	"navconsole/internal/session"
	"navconsole/pkg/response"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t   *testing.T
	srv *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		AppEnv:               "test",
		Port:                 "0",
		GinMode:              "test",
		DBDriver:             "sqlite",
		JWTSecret:            "test-secret",
		SessionIssuer:        "navconsole",
		SessionTTL:           720 * time.Hour,
		SessionRefreshWindow: 24 * time.Hour,
		SessionCookie:        "access_token",
		CORSOrigins:          []string{"http://localhost:5173"},
		AdminAccount:         "admin",
		AdminPassword:        "admin123",
		AdminEmail:           "admin@example.com",
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := database.NewConnection("sqlite", "file::memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	srv, err := New(cfg, log, db, session.NewMemoryDenyList(cfg.SessionTTL), metrics.New())
	require.NoError(t, err)
	require.NoError(t, srv.Seed(context.Background()))

	return &harness{t: t, srv: srv}
}

func (h *harness) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.srv.Router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (h *harness) login(account, password string) string {
	h.t.Helper()
	w, env := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"account":  account,
		"password": password,
	})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(h.t, data.Token)
	return data.Token
}

func decodeID(t *testing.T, env envelope) string {
	t.Helper()
	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.ID)
	return data.ID
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, env.Code)
}

func TestProtectedRouteWithoutCredential(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeUnauthorized, env.Code)

	// A garbage token is treated as no credential.
	w, env = h.do(http.MethodGet, "/api/roles", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeUnauthorized, env.Code)
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"account": "admin", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeUnauthorized, env.Code)

	w2, env2 := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"account": "nobody", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
	assert.Equal(t, env.Message, env2.Message, "unknown account and bad password must look the same")

	w, env = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"account": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeValidation, env.Code)
}

func TestLoginSetsCookie(t *testing.T) {
	h := newHarness(t)

	w, _ := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"account": "admin", "password": "admin123"})
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "access_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestViewerScenario(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin", "admin123")

	w, env := h.do(http.MethodPost, "/api/roles", admin, map[string]interface{}{
		"name":        "viewer",
		"permissions": []string{"user:read"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	roleID := decodeID(t, env)

	w, env = h.do(http.MethodPost, "/api/users", admin, map[string]interface{}{
		"account":  "bob",
		"password": "bob-secret",
		"email":    "bob@example.com",
		"roles":    []string{"viewer"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	bob := h.login("bob", "bob-secret")

	w, env = h.do(http.MethodGet, "/api/users?account=bo", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		List     []map[string]interface{} `json:"list"`
		Total    int64                    `json:"total"`
		Page     int                      `json:"page"`
		PageSize int                      `json:"pageSize"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)

	w, env = h.do(http.MethodPost, "/api/users", bob, map[string]interface{}{
		"account": "eve", "password": "eve-secret", "email": "eve@example.com",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.CodeForbidden, env.Code)
	assert.Contains(t, env.Message, "user:create")

	w, _ = h.do(http.MethodGet, "/api/roles/"+roleID, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Paths outside the catalog pass the gate.
	w, _ = h.do(http.MethodGet, "/api/unmapped", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = h.do(http.MethodGet, "/api/auth/me", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cred session.Credential
	require.NoError(t, json.Unmarshal(env.Data, &cred))
	assert.Equal(t, "bob", cred.Account)
	require.Len(t, cred.Roles, 1)
	assert.Equal(t, "viewer", cred.Roles[0].Name)
	assert.Equal(t, []string{"user:read"}, cred.PermissionCodes())
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin", "admin123")

	w, env := h.do(http.MethodPost, "/api/users", admin, map[string]interface{}{
		"account": "admin", "password": "another1", "email": "other@example.com",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.CodeConflict, env.Code)

	w, env = h.do(http.MethodPost, "/api/users", admin, map[string]interface{}{
		"account": "carol", "password": "carol-secret", "email": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeValidation, env.Code)

	w, env = h.do(http.MethodGet, "/api/users/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeNotFound, env.Code)

	w, env = h.do(http.MethodPost, "/api/users", admin, map[string]interface{}{
		"account": "dave", "password": "dave-secret", "email": "dave@example.com", "roles": []string{"ghost"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeNotFound, env.Code)

	w, env = h.do(http.MethodGet, "/api/users?status=9", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeValidation, env.Code)
}

func TestRolePermissionsReplace(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin", "admin123")

	w, env := h.do(http.MethodPost, "/api/roles", admin, map[string]interface{}{
		"name":        "editor",
		"permissions": []string{"user:read", "user:update"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	roleID := decodeID(t, env)

	w, env = h.do(http.MethodPut, "/api/roles/"+roleID+"/permissions", admin, map[string]interface{}{
		"permissions": []string{"role:read"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var role struct {
		Permissions []struct {
			Code string `json:"code"`
		} `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &role))
	require.Len(t, role.Permissions, 1)
	assert.Equal(t, "role:read", role.Permissions[0].Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin", "admin123")

	w, _ := h.do(http.MethodPost, "/api/auth/logout", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := h.do(http.MethodGet, "/api/users", admin, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeUnauthorized, env.Code)

	w, _ = h.do(http.MethodGet, "/api/auth/me", admin, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditLogsAndMetrics(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin", "admin123")

	w, _ := h.do(http.MethodPost, "/api/permissions", admin, map[string]interface{}{
		"name": "Export users", "code": "user:export", "type": "button",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := h.do(http.MethodGet, "/api/audit-logs?action=CREATE_PERMISSION", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		List  []map[string]interface{} `json:"list"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, "admin", page.List[0]["account"])

	w, _ = h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `navconsole_authz_decisions_total{outcome="allow"}`)
	assert.Contains(t, w.Body.String(), `navconsole_logins_total{result="success"} 1`)
}
