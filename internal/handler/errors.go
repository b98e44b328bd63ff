package handler

import (
	"errors"
	"net/http"
	"strconv"

	"navconsole/internal/model"
	"navconsole/internal/service"
	"navconsole/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps service error kinds to a status and envelope code. Anything else is
// a 500; the cause is attached to the gin context for the request logger and never
// echoed to the client.
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, response.CodeSystem
	switch {
	case errors.Is(err, service.ErrValidation):
		status, code = http.StatusBadRequest, response.CodeValidation
	case errors.Is(err, service.ErrInvalidCredential), errors.Is(err, service.ErrUnauthorized):
		status, code = http.StatusUnauthorized, response.CodeUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status, code = http.StatusForbidden, response.CodeForbidden
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, response.CodeNotFound
	case errors.Is(err, service.ErrConflict):
		status, code = http.StatusConflict, response.CodeConflict
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, response.Error(code, "internal server error"))
		return
	}
	c.JSON(status, response.Error(code, err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(response.CodeValidation, msg))
}

// statusQuery parses an optional status filter.
func statusQuery(c *gin.Context) (*model.Status, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	s := model.Status(n)
	if !s.Valid() {
		return nil, false
	}
	return &s, true
}
