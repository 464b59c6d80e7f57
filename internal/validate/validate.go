// Package validate checks form input before any network call is made.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"launchpad/internal/security"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a form field to its human readable problems
type FieldErrors map[string][]string

// SignIn is the sign-in form
type SignIn struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"min=8"`
}

// SignUp is the registration form
type SignUp struct {
	Name     string `form:"name" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"min=8"`
}

// Verify is the resend-verification form
type Verify struct {
	Email string `form:"email" validate:"required,email"`
}

// CreateProject is the new project form
type CreateProject struct {
	Name   string `form:"name" validate:"required"`
	GitURL string `form:"git_url" validate:"required,github_url"`
}

// messages keyed by failed tag
var messages = map[string]string{
	"email":      "Enter a valid email.",
	"min":        "Password must be at least 8 characters long.",
	"github_url": "Enter a valid GitHub repository URL (https://github.com/owner/repo).",
}

// requiredMessages keyed by form field
var requiredMessages = map[string]string{
	"name":    "Name cannot be empty.",
	"email":   "Enter a valid email.",
	"git_url": "Git URL cannot be empty.",
}

var (
	validate = newValidator()
	decoder  = form.NewDecoder()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("form")
	})

	if err := v.RegisterValidation("github_url", func(fl validator.FieldLevel) bool {
		return security.ValidateGitURL(fl.Field().String()) == nil
	}); err != nil {
		panic(fmt.Sprintf("validate: register github_url: %v", err))
	}

	return v
}

// Form decodes values into dst and validates it. dst must be a pointer to
// one of the form structs. Values are trimmed, except passwords.
func Form(values url.Values, dst any) FieldErrors {
	if err := decoder.Decode(dst, trimmed(values)); err != nil {
		return FieldErrors{"_form": {err.Error()}}
	}
	return Struct(dst)
}

// Struct validates an already populated form
func Struct(form any) FieldErrors {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"_form": {err.Error()}}
	}

	out := FieldErrors{}
	for _, fe := range verrs {
		field := fe.Field()
		out[field] = append(out[field], message(field, fe.Tag()))
	}
	return out
}

func message(field, tag string) string {
	if tag == "required" {
		if msg, ok := requiredMessages[field]; ok {
			return msg
		}
		return "This field is required."
	}
	if msg, ok := messages[tag]; ok {
		return msg
	}
	return "Invalid value."
}

// trimmed returns a copy of values with surrounding whitespace removed
// from everything but passwords
func trimmed(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		if key == "password" {
			out[key] = vals
			continue
		}
		clean := make([]string, len(vals))
		for i, v := range vals {
			clean[i] = strings.TrimSpace(v)
		}
		out[key] = clean
	}
	return out
}
