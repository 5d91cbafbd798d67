// Package apperr defines the closed set of failures the authentication flows
// can report. Each failure carries a user-facing message and maps to exactly
// one HTTP status; the conversion to the wire format happens once, at the
// echo boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Kind enumerates the error kinds a flow may return.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
)

// GenericMessage is shown for failures that are not attributable to the caller.
const GenericMessage = "Something went wrong! Our bad :("

// Status returns the canonical HTTP status of the kind.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// String returns a stable lowercase name, used as a metrics label.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "resource_not_found"
	default:
		return "internal_server_error"
	}
}

// Error is a typed flow failure. Payload holds optional structured extras
// (for example field-level validation errors) merged into the response body.
type Error struct {
	Kind    Kind
	Message string
	Payload map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status is shorthand for e.Kind.Status().
func (e *Error) Status() int { return e.Kind.Status() }

// Body renders the error payload: extras first, then status_code and message,
// which always win over keys of the same name in Payload.
func (e *Error) Body() map[string]any {
	body := make(map[string]any, len(e.Payload)+2)
	for k, v := range e.Payload {
		body[k] = v
	}
	body["status_code"] = e.Status()
	body["message"] = e.Message
	return body
}

// WithPayload returns a copy of e with key set in its payload.
func (e *Error) WithPayload(key string, value any) *Error {
	cp := *e
	cp.Payload = make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		cp.Payload[k] = v
	}
	cp.Payload[key] = value
	return &cp
}

func BadRequest(msg string) *Error   { return &Error{Kind: KindBadRequest, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }

// Internal wraps cause as an InternalServerError with the given message.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// From extracts the *Error in err's chain. Anything else becomes an
// InternalServerError carrying GenericMessage.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(GenericMessage, err)
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	return From(err).Kind
}
