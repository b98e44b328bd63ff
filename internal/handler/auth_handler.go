package handler

import (
	"net/http"

	"navconsole/internal/metrics"
	"navconsole/internal/middleware"
	"navconsole/internal/service"
	"navconsole/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	cookie      middleware.CookieConfig
	metrics     *metrics.Metrics
}

func NewAuthHandler(authService service.AuthService, cookie middleware.CookieConfig, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie, metrics: m}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/logout", middleware.RequireCredential(), h.Logout)
		auth.GET("/me", middleware.RequireCredential(), h.Me)
		auth.POST("/refresh", middleware.RequireCredential(), h.Refresh)
	}
}

// Login verifies account and password and issues a session credential
// @Summary      Log in
// @Description  Returns the signed credential in the body and as an HttpOnly cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload: "+err.Error())
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		h.metrics.ObserveLogin("failure")
		respondError(c, err)
		return
	}
	h.metrics.ObserveLogin("success")

	middleware.SetTokenCookie(c, h.cookie, res.Token)
	c.JSON(http.StatusOK, response.Success(res))
}

// Logout revokes the current credential and clears the cookie
// @Summary      Log out
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	cred, _ := middleware.CurrentCredential(c)
	if err := h.authService.Logout(c.Request.Context(), cred); err != nil {
		respondError(c, err)
		return
	}
	middleware.ClearTokenCookie(c, h.cookie)
	c.JSON(http.StatusOK, response.Success(nil))
}

// Me returns the credential snapshot of the caller
// @Summary      Current session
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=session.Credential}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	cred, _ := middleware.CurrentCredential(c)
	c.JSON(http.StatusOK, response.Success(cred))
}

// Refresh re-issues the current credential with a new expiry
// @Summary      Refresh session
// @Description  The role and permission snapshot is kept; log in again to pick up changes
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.LoginResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	cred, _ := middleware.CurrentCredential(c)
	res, err := h.authService.Refresh(c.Request.Context(), cred)
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.SetTokenCookie(c, h.cookie, res.Token)
	c.JSON(http.StatusOK, response.Success(res))
}
