package handler

import (
	"net/http"

	"navconsole/internal/repository"
	"navconsole/internal/service"
	"navconsole/pkg/pagination"
	"navconsole/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/audit-logs", h.GetAuditLogs)
}

// GetAuditLogs handles retrieving the audit trail
// @Summary      Get audit logs
// @Description  Newest first. Requires audit:read.
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action     query     string  false  "Exact action, e.g. UPDATE_ROLE"
// @Param        entity_id  query     string  false  "Entity id"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        pageSize   query     int     false  "Items per page (default 10)"
// @Success      200        {object}  response.Response{data=response.Page{list=[]service.AuditLogResponse}}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	page := pagination.Parse(c)
	filter := repository.AuditFilter{
		Action:   c.Query("action"),
		EntityID: c.Query("entity_id"),
	}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(logs, total, page.Page, page.PageSize))
}
