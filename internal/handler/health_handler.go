package handler

import (
	"net/http"

	"navconsole/internal/database"
	"navconsole/pkg/response"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	db database.Pinger
}

func NewHealthHandler(db database.Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.Health)
}

// Health reports whether the database answers
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      503  {object}  response.Response
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	if err := database.Ping(c.Request.Context(), h.db); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, response.Error(response.CodeSystem, "database unavailable"))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "ok"}))
}
