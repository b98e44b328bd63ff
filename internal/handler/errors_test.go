package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navconsole/internal/service"
	"navconsole/pkg/response"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"validation", fmt.Errorf("%w: email", service.ErrValidation), http.StatusBadRequest, response.CodeValidation},
		{"bad credential", service.ErrInvalidCredential, http.StatusUnauthorized, response.CodeUnauthorized},
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized, response.CodeUnauthorized},
		{"forbidden", fmt.Errorf("%w: account is disabled", service.ErrForbidden), http.StatusForbidden, response.CodeForbidden},
		{"not found", fmt.Errorf("%w: role", service.ErrNotFound), http.StatusNotFound, response.CodeNotFound},
		{"conflict", fmt.Errorf("%w: account exists", service.ErrConflict), http.StatusConflict, response.CodeConflict},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, response.CodeSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, body.Message, "connection reset")
				assert.Len(t, c.Errors, 1)
			} else {
				assert.Equal(t, tt.err.Error(), body.Message)
			}
		})
	}
}

func TestStatusQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for raw, want := range map[string]bool{"": true, "1": true, "2": true, "0": false, "x": false, "3": false} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/users?status="+raw, nil)

		s, ok := statusQuery(c)
		assert.Equal(t, want, ok, "status=%q", raw)
		if raw == "" {
			assert.Nil(t, s)
		}
	}
}
