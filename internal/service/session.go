// Package service implements the session and credential lifecycle:
// register, login, logout, forgot-password and reset-password.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/user-authenticator/internal/apperr"
	"github.com/iliyamo/user-authenticator/internal/config"
	"github.com/iliyamo/user-authenticator/internal/mail"
	"github.com/iliyamo/user-authenticator/internal/model"
	"github.com/iliyamo/user-authenticator/internal/repository"
	"github.com/iliyamo/user-authenticator/internal/utils"
)

// User-facing messages.
const (
	MsgRegistered      = "User registered successfully."
	MsgUserExists      = "User already exists. Please log in."
	MsgUserNotFound    = "User does not exist. Please create an account."
	MsgBadPassword     = "Invalid password. Try again."
	MsgLoggedOut       = "Successfully logged out"
	MsgResetLinkSent   = "Link to reset password successfully sent"
	MsgPasswordReset   = "Password has been reset successfully"
	MsgInvalidToken    = "Invalid token. Please log in again."
	MsgExpiredToken    = "Signature expired. Please log in again."
	MsgRevokedToken    = "Token blacklisted. Please log in again."
	MsgUserGone        = "User no longer exists. Please log in again."
	MsgInvalidInput    = "Invalid input."
	MsgPasswordTooLong = "Password must be at most 72 bytes."
	MsgMailFailed      = "Something went wrong! Check your network connection then try again."
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, hash string) (bool, error)
}

// TokenCodec mints and decodes signed tokens.
type TokenCodec interface {
	Mint(subject string) (string, time.Time, error)
	Decode(ctx context.Context, token string) (*utils.TokenClaims, error)
}

// MessageResult is a response carrying only a message.
type MessageResult struct {
	Message string `json:"message"`
}

// LoginResult is the whitelisted login response. The password hash has no
// field here, so it cannot be serialized.
type LoginResult struct {
	AuthToken string `json:"auth_token"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

// ForgotPasswordResult carries the reset token only when echoing it is
// enabled.
type ForgotPasswordResult struct {
	AuthToken string `json:"auth_token,omitempty"`
	Message   string `json:"message"`
}

// SessionService orchestrates the store, hasher, codec and mailer.
type SessionService struct {
	repos  repository.Manager
	hasher PasswordHasher
	tokens TokenCodec
	mailer mail.Sender
	log    *slog.Logger

	sender          string
	linkBase        string
	mailTimeout     time.Duration
	tokenInResponse bool
	now             func() time.Time
}

func NewSessionService(cfg *config.Config, repos repository.Manager, hasher PasswordHasher, tokens TokenCodec, mailer mail.Sender, log *slog.Logger) *SessionService {
	timeout := cfg.Mail.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SessionService{
		repos:           repos,
		hasher:          hasher,
		tokens:          tokens,
		mailer:          mailer,
		log:             log,
		sender:          cfg.Mail.Sender,
		linkBase:        cfg.ResetLinkBase,
		mailTimeout:     timeout,
		tokenInResponse: cfg.ResetTokenInResponse,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a user with a freshly hashed password. No token is issued.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*MessageResult, error) {
	in.normalize()
	if err := invalidInput(in.Validate()); err != nil {
		return nil, err
	}

	_, err := s.repos.Users().GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, apperr.BadRequest(MsgUserExists)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, s.internal(ctx, "register", err)
	}

	hash, err := s.hash(ctx, "register", in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           utils.NewID(),
		Firstname:    in.Firstname,
		Lastname:     in.Lastname,
		Email:        in.Email,
		PasswordHash: hash,
		RegisteredAt: s.now(),
	}
	if err := s.repos.Users().Create(ctx, u); err != nil {
		// the unique key catches registrations racing past the lookup
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, apperr.BadRequest(MsgUserExists)
		}
		return nil, s.internal(ctx, "register", err)
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return &MessageResult{Message: MsgRegistered}, nil
}

// Login verifies the password and mints a session token.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.normalize()
	if err := invalidInput(in.Validate()); err != nil {
		return nil, err
	}

	u, err := s.repos.Users().GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(MsgUserNotFound)
		}
		return nil, s.internal(ctx, "login", err)
	}

	ok, err := s.hasher.Verify(ctx, in.Password, u.PasswordHash)
	if err != nil {
		return nil, s.internal(ctx, "login", err)
	}
	if !ok {
		return nil, apperr.Unauthorized(MsgBadPassword)
	}

	token, _, err := s.tokens.Mint(u.ID)
	if err != nil {
		return nil, s.internal(ctx, "login", err)
	}
	return &LoginResult{
		AuthToken: token,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Email:     u.Email,
	}, nil
}

// Logout revokes a valid token. Revoking a token that a concurrent logout
// already recorded succeeds.
func (s *SessionService) Logout(ctx context.Context, token string) (*MessageResult, error) {
	claims, err := s.decode(ctx, "logout", token)
	if err != nil {
		return nil, err
	}

	if _, err := s.repos.Users().GetByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized(MsgUserGone)
		}
		return nil, s.internal(ctx, "logout", err)
	}

	if _, err := s.repos.Ledger().Revoke(ctx, token, claims.ExpiresAt); err != nil {
		return nil, s.internal(ctx, "logout", err)
	}
	return &MessageResult{Message: MsgLoggedOut}, nil
}

// ForgotPassword mints a reset token for the user and mails the reset link.
// If mail delivery fails no token is returned.
func (s *SessionService) ForgotPassword(ctx context.Context, in ForgotPasswordInput) (*ForgotPasswordResult, error) {
	in.normalize()
	if err := invalidInput(in.Validate()); err != nil {
		return nil, err
	}

	u, err := s.repos.Users().GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.BadRequest(MsgUserNotFound)
		}
		return nil, s.internal(ctx, "forgot_password", err)
	}

	token, _, err := s.tokens.Mint(u.ID)
	if err != nil {
		return nil, s.internal(ctx, "forgot_password", err)
	}

	msg := mail.PasswordResetMessage(s.sender, u.Email, s.linkBase, u.ID, token)
	mctx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()
	if err := s.mailer.Send(mctx, msg); err != nil {
		s.log.ErrorContext(ctx, "reset mail failed", "flow", "forgot_password", "user_id", u.ID, "err", err)
		return nil, apperr.Internal(MsgMailFailed, err)
	}

	res := &ForgotPasswordResult{Message: MsgResetLinkSent}
	if s.tokenInResponse {
		res.AuthToken = token
	}
	return res, nil
}

// errTokenSpent aborts a reset whose token a concurrent reset revoked first.
var errTokenSpent = errors.New("token already spent")

// ResetPassword decodes the token, looks the user up, hashes the new
// password, overwrites the stored hash and revokes the token. The overwrite
// and the revocation commit together; if the token turns out to be revoked
// already, nothing is written.
func (s *SessionService) ResetPassword(ctx context.Context, token string, in ResetPasswordInput) (*MessageResult, error) {
	if err := invalidInput(in.Validate()); err != nil {
		return nil, err
	}

	claims, err := s.decode(ctx, "reset_password", token)
	if err != nil {
		return nil, err
	}

	u, err := s.repos.Users().GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(MsgUserNotFound)
		}
		return nil, s.internal(ctx, "reset_password", err)
	}

	hash, err := s.hash(ctx, "reset_password", in.Password)
	if err != nil {
		return nil, err
	}

	err = s.repos.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Users().UpdatePassword(ctx, u.ID, hash); err != nil {
			return err
		}
		inserted, err := tx.Ledger().Revoke(ctx, token, claims.ExpiresAt)
		if err != nil {
			return err
		}
		if !inserted {
			return errTokenSpent
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errTokenSpent):
		return nil, apperr.Unauthorized(MsgRevokedToken)
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound(MsgUserNotFound)
	default:
		return nil, s.internal(ctx, "reset_password", err)
	}

	s.log.InfoContext(ctx, "password reset", "user_id", u.ID)
	return &MessageResult{Message: MsgPasswordReset}, nil
}

func (s *SessionService) decode(ctx context.Context, flow, token string) (*utils.TokenClaims, error) {
	claims, err := s.tokens.Decode(ctx, token)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, utils.ErrInvalidToken):
		return nil, apperr.Unauthorized(MsgInvalidToken)
	case errors.Is(err, utils.ErrExpiredToken):
		return nil, apperr.Unauthorized(MsgExpiredToken)
	case errors.Is(err, utils.ErrRevokedToken):
		return nil, apperr.Unauthorized(MsgRevokedToken)
	default:
		return nil, s.internal(ctx, flow, err)
	}
}

func (s *SessionService) hash(ctx context.Context, flow, plain string) (string, error) {
	hash, err := s.hasher.Hash(ctx, plain)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return "", apperr.BadRequest(MsgPasswordTooLong)
		}
		return "", s.internal(ctx, flow, err)
	}
	return hash, nil
}

// internal logs err with the flow name and hides it behind the generic
// message. Secrets are never part of err.
func (s *SessionService) internal(ctx context.Context, flow string, err error) error {
	s.log.ErrorContext(ctx, "flow failed", "flow", flow, "err", err)
	return apperr.Internal(apperr.GenericMessage, err)
}

func invalidInput(err error) error {
	if err == nil {
		return nil
	}
	fields := FieldErrors(err)
	if fields == nil {
		return apperr.BadRequest(MsgInvalidInput)
	}
	return apperr.BadRequest(MsgInvalidInput).WithPayload("errors", fields)
}
