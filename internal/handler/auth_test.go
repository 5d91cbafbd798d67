package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-authenticator/internal/apperr"
	"github.com/iliyamo/user-authenticator/internal/logging"
	"github.com/iliyamo/user-authenticator/internal/middleware"
	"github.com/iliyamo/user-authenticator/internal/service"
)

type stubSessions struct {
	register   func(service.RegisterInput) (*service.MessageResult, error)
	login      func(service.LoginInput) (*service.LoginResult, error)
	logout     func(string) (*service.MessageResult, error)
	forgot     func(service.ForgotPasswordInput) (*service.ForgotPasswordResult, error)
	reset      func(string, service.ResetPasswordInput) (*service.MessageResult, error)
	sawTimeout bool
}

func (s *stubSessions) deadline(ctx context.Context) {
	_, s.sawTimeout = ctx.Deadline()
}

func (s *stubSessions) Register(ctx context.Context, in service.RegisterInput) (*service.MessageResult, error) {
	s.deadline(ctx)
	return s.register(in)
}

func (s *stubSessions) Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error) {
	s.deadline(ctx)
	return s.login(in)
}

func (s *stubSessions) Logout(ctx context.Context, token string) (*service.MessageResult, error) {
	s.deadline(ctx)
	return s.logout(token)
}

func (s *stubSessions) ForgotPassword(ctx context.Context, in service.ForgotPasswordInput) (*service.ForgotPasswordResult, error) {
	s.deadline(ctx)
	return s.forgot(in)
}

func (s *stubSessions) ResetPassword(ctx context.Context, token string, in service.ResetPasswordInput) (*service.MessageResult, error) {
	s.deadline(ctx)
	return s.reset(token, in)
}

type flowCounter struct {
	mu  sync.Mutex
	got map[string][]apperr.Kind
}

func (f *flowCounter) ObserveFlow(flow string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.got == nil {
		f.got = map[string][]apperr.Kind{}
	}
	kind := apperr.Kind(-1)
	if err != nil {
		kind = apperr.KindOf(err)
	}
	f.got[flow] = append(f.got[flow], kind)
}

func newEcho(s Sessions, obs FlowObserver) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logging.Discard())
	h := NewAuthHandler(s, obs, time.Second)
	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/forgotpassword", h.ForgotPassword)
	e.POST("/auth/logout", h.Logout,
		middleware.Bearer(apperr.Unauthorized(MsgMissingToken), h.Rejected(FlowLogout)))
	e.POST("/auth/resetpassword", h.ResetPassword,
		middleware.Bearer(apperr.BadRequest(MsgTokenNeeded), h.Rejected(FlowResetPassword)))
	return e
}

func do(e *echo.Echo, path, body, auth string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestRegister(t *testing.T) {
	var got service.RegisterInput
	s := &stubSessions{register: func(in service.RegisterInput) (*service.MessageResult, error) {
		got = in
		return &service.MessageResult{Message: service.MsgRegistered}, nil
	}}
	obs := &flowCounter{}
	e := newEcho(s, obs)

	rec, body := do(e, "/auth/register",
		`{"firstname":"Jane","lastname":"Doe","email":"jane@x.com","password":"secret1"}`, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, service.MsgRegistered, body["message"])
	assert.Equal(t, "Jane", got.Firstname)
	assert.Equal(t, "secret1", got.Password)
	assert.True(t, s.sawTimeout)
	assert.Equal(t, []apperr.Kind{-1}, obs.got[FlowRegister])
}

func TestRegister_ValidationPayload(t *testing.T) {
	s := &stubSessions{register: func(service.RegisterInput) (*service.MessageResult, error) {
		return nil, apperr.BadRequest(service.MsgInvalidInput).
			WithPayload("errors", map[string][]string{"email": {"must be a valid email address"}})
	}}
	rec, body := do(newEcho(s, nil), "/auth/register", `{"email":"x"}`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 400, body["status_code"])
	assert.Equal(t, service.MsgInvalidInput, body["message"])
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"must be a valid email address"}, errs["email"])
}

func TestRegister_BadBody(t *testing.T) {
	called := false
	s := &stubSessions{register: func(service.RegisterInput) (*service.MessageResult, error) {
		called = true
		return nil, nil
	}}
	obs := &flowCounter{}
	rec, body := do(newEcho(s, obs), "/auth/register", `{"email":`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgBadBody, body["message"])
	assert.False(t, called)
	assert.Equal(t, []apperr.Kind{apperr.KindBadRequest}, obs.got[FlowRegister])
}

func TestLogin_ResponseIsWhitelisted(t *testing.T) {
	s := &stubSessions{login: func(in service.LoginInput) (*service.LoginResult, error) {
		return &service.LoginResult{AuthToken: "a.b.c", Firstname: "Jane", Lastname: "Doe", Email: in.Email}, nil
	}}
	rec, body := do(newEcho(s, nil), "/auth/login", `{"email":"jane@x.com","password":"secret1"}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body, 4)
	assert.Equal(t, "a.b.c", body["auth_token"])
	assert.Equal(t, "jane@x.com", body["email"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLogin_Errors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.NotFound(service.MsgUserNotFound), http.StatusNotFound, service.MsgUserNotFound},
		{apperr.Unauthorized(service.MsgBadPassword), http.StatusUnauthorized, service.MsgBadPassword},
		{apperr.Internal(apperr.GenericMessage, errors.New("db")), http.StatusInternalServerError, apperr.GenericMessage},
		{errors.New("raw failure"), http.StatusInternalServerError, apperr.GenericMessage},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			s := &stubSessions{login: func(service.LoginInput) (*service.LoginResult, error) { return nil, tc.err }}
			rec, body := do(newEcho(s, nil), "/auth/login", `{}`, "")
			assert.Equal(t, tc.status, rec.Code)
			assert.EqualValues(t, tc.status, body["status_code"])
			assert.Equal(t, tc.msg, body["message"])
			assert.NotContains(t, rec.Body.String(), "raw failure")
		})
	}
}

func TestLogout(t *testing.T) {
	var gotToken string
	s := &stubSessions{logout: func(tok string) (*service.MessageResult, error) {
		gotToken = tok
		return &service.MessageResult{Message: service.MsgLoggedOut}, nil
	}}
	e := newEcho(s, nil)

	rec, body := do(e, "/auth/logout", "", "Bearer a.b.c")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.MsgLoggedOut, body["message"])
	assert.Equal(t, "a.b.c", gotToken)

	rec, body = do(e, "/auth/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, MsgMissingToken, body["message"])

	rec, body = do(e, "/auth/logout", "", "Bearer")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, middleware.MsgMalformedBearer, body["message"])
}

func TestBearerRejectionsAreObserved(t *testing.T) {
	obs := &flowCounter{}
	e := newEcho(&stubSessions{}, obs)

	rec, _ := do(e, "/auth/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = do(e, "/auth/logout", "", "Token a.b.c")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(e, "/auth/resetpassword", `{"password":"newpass1"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []apperr.Kind{apperr.KindUnauthorized, apperr.KindBadRequest}, obs.got[FlowLogout])
	assert.Equal(t, []apperr.Kind{apperr.KindBadRequest}, obs.got[FlowResetPassword])
}

func TestForgotPassword(t *testing.T) {
	s := &stubSessions{forgot: func(in service.ForgotPasswordInput) (*service.ForgotPasswordResult, error) {
		return &service.ForgotPasswordResult{AuthToken: "r.e.t", Message: service.MsgResetLinkSent}, nil
	}}
	rec, body := do(newEcho(s, nil), "/auth/forgotpassword", `{"email":"jane@x.com"}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r.e.t", body["auth_token"])
	assert.Equal(t, service.MsgResetLinkSent, body["message"])
}

func TestForgotPassword_TokenOmitted(t *testing.T) {
	s := &stubSessions{forgot: func(service.ForgotPasswordInput) (*service.ForgotPasswordResult, error) {
		return &service.ForgotPasswordResult{Message: service.MsgResetLinkSent}, nil
	}}
	_, body := do(newEcho(s, nil), "/auth/forgotpassword", `{"email":"jane@x.com"}`, "")
	assert.NotContains(t, body, "auth_token")
}

func TestResetPassword(t *testing.T) {
	var gotToken, gotPassword string
	s := &stubSessions{reset: func(tok string, in service.ResetPasswordInput) (*service.MessageResult, error) {
		gotToken, gotPassword = tok, in.Password
		return &service.MessageResult{Message: service.MsgPasswordReset}, nil
	}}
	e := newEcho(s, nil)

	rec, body := do(e, "/auth/resetpassword", `{"password":"newpass1"}`, "Bearer r.e.t")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, service.MsgPasswordReset, body["message"])
	assert.Equal(t, "r.e.t", gotToken)
	assert.Equal(t, "newpass1", gotPassword)

	rec, body = do(e, "/auth/resetpassword", `{"password":"newpass1"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgTokenNeeded, body["message"])
}

func TestErrorHandler_EchoErrors(t *testing.T) {
	e := newEcho(&stubSessions{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 404, body["status_code"])
	assert.Equal(t, "Not Found", body["message"])
}

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health(map[string]Check{
		"db": func(context.Context) error { return nil },
	}))
	e.GET("/degraded", Health(map[string]Check{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("refused") },
	}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"db":"ok"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/degraded", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","checks":{"db":"ok","redis":"down"}}`, rec.Body.String())
}
