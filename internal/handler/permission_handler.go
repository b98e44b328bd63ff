package handler

import (
	"net/http"

	"navconsole/internal/model"
	"navconsole/internal/repository"
	"navconsole/internal/service"
	"navconsole/pkg/pagination"
	"navconsole/pkg/response"

	"github.com/gin-gonic/gin"
)

type PermissionHandler struct {
	permissionService service.PermissionService
}

func NewPermissionHandler(permissionService service.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissionService: permissionService}
}

func (h *PermissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	perms := router.Group("/api/permissions")
	{
		perms.POST("", h.CreatePermission)
		perms.GET("", h.ListPermissions)
		perms.GET("/:id", h.GetPermission)
		perms.PUT("/:id", h.UpdatePermission)
		perms.DELETE("/:id", h.DeletePermission)
	}
}

// @Summary      Create a permission
// @Tags         permissions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePermissionRequest  true  "Permission payload"
// @Success      200      {object}  response.Response{data=service.PermissionResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/permissions [post]
func (h *PermissionHandler) CreatePermission(c *gin.Context) {
	var req service.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload: "+err.Error())
		return
	}

	res, err := h.permissionService.CreatePermission(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

// @Summary      List permissions
// @Tags         permissions
// @Security     BearerAuth
// @Produce      json
// @Param        name      query     string  false  "Name substring"
// @Param        code      query     string  false  "Code substring"
// @Param        type      query     string  false  "module, page, api or button"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        pageSize  query     int     false  "Items per page (default 10)"
// @Success      200       {object}  response.Response{data=response.Page{list=[]service.PermissionResponse}}
// @Router       /api/permissions [get]
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	page := pagination.Parse(c)
	filter := repository.PermissionFilter{
		Name: c.Query("name"),
		Code: c.Query("code"),
		Type: model.PermissionType(c.Query("type")),
	}

	perms, total, err := h.permissionService.ListPermissions(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(perms, total, page.Page, page.PageSize))
}

// @Summary      Get a permission
// @Tags         permissions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Permission ID"
// @Success      200  {object}  response.Response{data=service.PermissionResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/permissions/{id} [get]
func (h *PermissionHandler) GetPermission(c *gin.Context) {
	res, err := h.permissionService.GetPermission(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

// @Summary      Update a permission
// @Tags         permissions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Permission ID"
// @Param        payload  body      service.UpdatePermissionRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.PermissionResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/permissions/{id} [put]
func (h *PermissionHandler) UpdatePermission(c *gin.Context) {
	var req service.UpdatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload: "+err.Error())
		return
	}

	res, err := h.permissionService.UpdatePermission(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

// @Summary      Delete a permission
// @Description  Removes the permission from every role holding it
// @Tags         permissions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Permission ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/permissions/{id} [delete]
func (h *PermissionHandler) DeletePermission(c *gin.Context) {
	if err := h.permissionService.DeletePermission(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(nil))
}
