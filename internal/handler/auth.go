package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-authenticator/internal/apperr"
	"github.com/iliyamo/user-authenticator/internal/middleware"
	"github.com/iliyamo/user-authenticator/internal/service"
)

// Messages for requests rejected before they reach a flow.
const (
	MsgBadBody      = "Invalid request body."
	MsgMissingToken = "Provide a valid auth token."
	MsgTokenNeeded  = "Token is required!"
)

// Flow names, used as the metrics label.
const (
	FlowRegister       = "register"
	FlowLogin          = "login"
	FlowLogout         = "logout"
	FlowForgotPassword = "forgot_password"
	FlowResetPassword  = "reset_password"
)

// Sessions is the flow API the handlers drive.
type Sessions interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.MessageResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) (*service.MessageResult, error)
	ForgotPassword(ctx context.Context, in service.ForgotPasswordInput) (*service.ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, token string, in service.ResetPasswordInput) (*service.MessageResult, error)
}

// FlowObserver counts flow outcomes.
type FlowObserver interface {
	ObserveFlow(flow string, err error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	svc     Sessions
	obs     FlowObserver
	timeout time.Duration
}

func NewAuthHandler(svc Sessions, obs FlowObserver, timeout time.Duration) *AuthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuthHandler{svc: svc, obs: obs, timeout: timeout}
}

// Register: create the user; no token is issued.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return h.done(FlowRegister, apperr.BadRequest(MsgBadBody))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.svc.Register(ctx, req)
	if err := h.done(FlowRegister, err); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// Login: verify credentials and return a token with the profile.
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return h.done(FlowLogin, apperr.BadRequest(MsgBadBody))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.svc.Login(ctx, req)
	if err := h.done(FlowLogin, err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Logout: revoke the bearer token.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.svc.Logout(ctx, middleware.Token(c))
	if err := h.done(FlowLogout, err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ForgotPassword: mail a reset link.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req service.ForgotPasswordInput
	if err := c.Bind(&req); err != nil {
		return h.done(FlowForgotPassword, apperr.BadRequest(MsgBadBody))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.svc.ForgotPassword(ctx, req)
	if err := h.done(FlowForgotPassword, err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ResetPassword: set a new password with the bearer reset token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req service.ResetPasswordInput
	if err := c.Bind(&req); err != nil {
		return h.done(FlowResetPassword, apperr.BadRequest(MsgBadBody))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.svc.ResetPassword(ctx, middleware.Token(c), req)
	if err := h.done(FlowResetPassword, err); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.timeout)
}

// Rejected records a request the bearer middleware turned away before the
// flow ran.
func (h *AuthHandler) Rejected(flow string) func(error) {
	return func(err error) { _ = h.done(flow, err) }
}

// done records the outcome and passes err through.
func (h *AuthHandler) done(flow string, err error) error {
	if h.obs != nil {
		h.obs.ObserveFlow(flow, err)
	}
	return err
}
