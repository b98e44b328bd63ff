package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"navconsole/internal/authz"
	"navconsole/internal/metrics"
	"navconsole/internal/service"
	"navconsole/internal/session"
	"navconsole/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	ContextCredential = "credential"
	ContextUserID     = "userID"

	// RefreshedTokenHeader carries a re-issued token for clients that do not use cookies.
	RefreshedTokenHeader = "X-Refreshed-Token"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// sameSite: cross-origin deployments need None+Secure, local development uses Lax.
func (cfg CookieConfig) sameSite() http.SameSite {
	if cfg.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// SetTokenCookie stores token as an HttpOnly cookie on path /.
func SetTokenCookie(c *gin.Context, cfg CookieConfig, token string) {
	c.SetSameSite(cfg.sameSite())
	c.SetCookie(cfg.Name, token, int(cfg.MaxAge.Seconds()), "/", "", cfg.Secure, true)
}

// ClearTokenCookie removes the session cookie.
func ClearTokenCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(cfg.sameSite())
	c.SetCookie(cfg.Name, "", -1, "/", "", cfg.Secure, true)
}

// ExtractToken reads the token from the session cookie, falling back to a
// "Bearer <token>" Authorization header.
func ExtractToken(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// CurrentCredential returns the credential resolved for this request, if any.
func CurrentCredential(c *gin.Context) (*session.Credential, bool) {
	v, ok := c.Get(ContextCredential)
	if !ok {
		return nil, false
	}
	cred, ok := v.(*session.Credential)
	return cred, ok && cred != nil
}

// Authorizer resolves the presented credential and enforces the gate on every request.
type Authorizer struct {
	sessions *session.Authenticator
	gate     *authz.Gate
	cookie   CookieConfig
	metrics  *metrics.Metrics
	log      *logrus.Logger
}

func NewAuthorizer(sessions *session.Authenticator, gate *authz.Gate, cookie CookieConfig, m *metrics.Metrics, log *logrus.Logger) *Authorizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Authorizer{sessions: sessions, gate: gate, cookie: cookie, metrics: m, log: log}
}

// Enforce is installed on the whole router. Public routes pass through; the
// credential, when valid, is still attached so handlers like /me can use it.
func (a *Authorizer) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		var cred *session.Credential
		if token := ExtractToken(c, a.cookie.Name); token != "" {
			resolved, err := a.sessions.Authenticate(c.Request.Context(), token)
			switch {
			case err == nil:
				cred = resolved
			case isCredentialError(err):
				a.log.WithError(err).WithField("path", c.Request.URL.Path).Debug("ignoring presented credential")
			default:
				a.log.WithError(err).Error("credential check failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(response.CodeSystem, "failed to verify credential"))
				return
			}
		}

		var grants authz.Grants
		if cred != nil {
			grants = cred
		}
		decision := a.gate.Decide(c.Request.URL.Path, c.Request.Method, grants)
		a.metrics.ObserveDecision(decision.Outcome.String())

		switch decision.Outcome {
		case authz.DenyUnauthenticated:
			a.log.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Info("authorization denied: no valid credential")
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(response.CodeUnauthorized, "authentication required"))
			return
		case authz.DenyForbidden:
			a.log.WithFields(logrus.Fields{
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
				"user_id":    cred.UserID.String(),
				"permission": decision.Permission,
			}).Info("authorization denied: missing permission")
			msg := "access denied"
			if decision.Permission != "" {
				msg = "access denied: missing permission '" + decision.Permission + "'"
			}
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(response.CodeForbidden, msg))
			return
		}

		if cred != nil {
			c.Set(ContextCredential, cred)
			c.Set(ContextUserID, cred.UserID.String())
			c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), cred.UserID))
			a.slide(c, cred)
		}
		c.Next()
	}
}

// slide re-issues credentials that are close to expiry, keeping their snapshot.
func (a *Authorizer) slide(c *gin.Context, cred *session.Credential) {
	issuer := a.sessions.Issuer()
	if !issuer.NeedsRefresh(cred) {
		return
	}
	token, _, err := issuer.Refresh(cred)
	if err != nil {
		a.log.WithError(err).Warn("credential refresh failed")
		return
	}
	SetTokenCookie(c, a.cookie, token)
	c.Header(RefreshedTokenHeader, token)
}

// RequireCredential rejects requests that reached an unprotected route without a
// valid credential.
func RequireCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentCredential(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(response.CodeUnauthorized, "authentication required"))
			return
		}
		c.Next()
	}
}

func isCredentialError(err error) bool {
	return errors.Is(err, session.ErrExpired) ||
		errors.Is(err, session.ErrMalformed) ||
		errors.Is(err, session.ErrInvalid) ||
		errors.Is(err, session.ErrRevoked)
}
