// Package utils provides the credential primitives: bcrypt password hashing,
// the signed token codec and identifier generation.
package utils

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/iliyamo/user-authenticator/internal/config"
)

// Decode failures. Each maps to one user-facing message at the boundary.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrRevokedToken = errors.New("token revoked")
)

// RevocationChecker is consulted on every decode, after the signature and
// expiry have been checked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// TokenClaims is what a decoded token asserts.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// TokenCodec mints and validates HS256 tokens carrying sub, iat, exp and a
// random jti.
type TokenCodec struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationChecker
	now     func() time.Time
}

// NewTokenCodec builds a codec keyed by cfg.JWTSecret. revoked may be nil,
// in which case no deny-list lookup happens.
func NewTokenCodec(cfg *config.Config, revoked RevocationChecker) *TokenCodec {
	return &TokenCodec{
		secret:  []byte(cfg.JWTSecret),
		ttl:     cfg.TokenTTL,
		revoked: revoked,
		now:     time.Now,
	}
}

// TTL returns the lifetime given to tokens minted with Mint.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Encode signs a token for subject valid from issuedAt for ttl. It returns
// the token string and its expiry.
func (c *TokenCodec) Encode(subject string, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := issuedAt.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").With("subject", subject).Wrap(err)
	}
	// exp is carried with second precision
	return signed, exp.Truncate(time.Second), nil
}

// Mint signs a token for subject issued now with the configured TTL.
func (c *TokenCodec) Mint(subject string) (string, time.Time, error) {
	return c.Encode(subject, c.now(), c.ttl)
}

// Decode verifies the signature, then the expiry, then the deny-list. A
// failing ledger lookup is returned as an error, never as success.
func (c *TokenCodec) Decode(ctx context.Context, token string) (*TokenClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
		// exp itself is still valid: accept while now <= exp
		jwt.WithLeeway(time.Nanosecond),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	if c.revoked != nil {
		revoked, err := c.revoked.IsRevoked(ctx, token)
		if err != nil {
			return nil, oops.Code("TOKEN_LEDGER_FAILED").Wrap(err)
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}

	out := &TokenClaims{Subject: claims.Subject, ID: claims.ID}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
