package service

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RegisterInput is the register request body.
type RegisterInput struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginInput is the login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordInput is the forgot-password request body.
type ForgotPasswordInput struct {
	Email string `json:"email"`
}

// ResetPasswordInput is the reset-password request body. The token comes
// from the Authorization header.
type ResetPasswordInput struct {
	Password string `json:"password"`
}

func emailRules(v *string) *validation.FieldRules {
	return validation.Field(v, validation.Required, is.Email, validation.Length(0, 345))
}

func (r *RegisterInput) normalize() {
	r.Firstname = strings.TrimSpace(r.Firstname)
	r.Lastname = strings.TrimSpace(r.Lastname)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *LoginInput) normalize() { r.Email = strings.TrimSpace(r.Email) }

func (r *ForgotPasswordInput) normalize() { r.Email = strings.TrimSpace(r.Email) }

// Validate checks names (2 to 20), email format and password (6 to 72 bytes).
func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Firstname, validation.Required, validation.Length(2, 20)),
		validation.Field(&r.Lastname, validation.Required, validation.Length(2, 20)),
		emailRules(&r.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
	)
}

// Validate checks email format and a password of at least 6 bytes. Longer
// than 72 is left to the hasher, which never matches it.
func (r LoginInput) Validate() error {
	return validation.ValidateStruct(&r,
		emailRules(&r.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
	)
}

func (r ForgotPasswordInput) Validate() error {
	return validation.ValidateStruct(&r, emailRules(&r.Email))
}

func (r ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
	)
}

// FieldErrors flattens ozzo validation errors into field -> messages. It
// returns nil when err carries no field errors.
func FieldErrors(err error) map[string][]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return nil
	}
	out := make(map[string][]string, len(verrs))
	for field, e := range verrs {
		out[field] = []string{e.Error()}
	}
	return out
}
