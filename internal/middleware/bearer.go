package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-authenticator/internal/apperr"
)

const tokenKey = "auth_token"

// MsgMalformedBearer is returned for an Authorization header that is not
// "Bearer <token>".
const MsgMalformedBearer = "Bearer token malformed"

// Bearer extracts the token from "Authorization: Bearer <token>" and stores
// it in the context for the handler. A missing header yields onMissing; a
// header of any other shape is a 400. The token is not verified here: the
// session service decodes it so signature, expiry and revocation are
// checked in one place. onReject, when set, sees every rejection before it
// is returned.
func Bearer(onMissing *apperr.Error, onReject func(error)) echo.MiddlewareFunc {
	reject := func(err *apperr.Error) error {
		if onReject != nil {
			onReject(err)
		}
		return err
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.TrimSpace(auth) == "" {
				return reject(onMissing)
			}
			parts := strings.Fields(auth)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return reject(apperr.BadRequest(MsgMalformedBearer))
			}
			c.Set(tokenKey, parts[1])
			return next(c)
		}
	}
}

// Token returns the bearer token stored by Bearer, or "".
func Token(c echo.Context) string {
	tok, _ := c.Get(tokenKey).(string)
	return tok
}
