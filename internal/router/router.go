// Package router defines how HTTP routes are registered for the API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-authenticator/internal/apperr"
	"github.com/iliyamo/user-authenticator/internal/handler"
	"github.com/iliyamo/user-authenticator/internal/middleware"
)

// RegisterRoutes registers the operational endpoints: /healthz and, when
// metrics is non-nil, /metrics.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check, metrics http.Handler) {
	e.GET("/healthz", handler.Health(checks))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers the auth flows under /auth. Logout and reset read
// the token from the Authorization header; a missing header is a 401 for
// logout and a 400 for reset.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/forgotpassword", a.ForgotPassword)

	g.POST("/logout", a.Logout,
		middleware.Bearer(apperr.Unauthorized(handler.MsgMissingToken), a.Rejected(handler.FlowLogout)))
	g.POST("/resetpassword", a.ResetPassword,
		middleware.Bearer(apperr.BadRequest(handler.MsgTokenNeeded), a.Rejected(handler.FlowResetPassword)))
}
