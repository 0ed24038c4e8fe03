// Package validation configures struct validation for request payloads.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// messages overrides the generic text for known field/tag pairs
var messages = map[string]string{
	"customerName.required":    "Name is required",
	"customerEmail.required":   "Email is required",
	"customerEmail.storeemail": "Invalid email format",
	"customerPhone.required":   "Phone is required",
	"customerAddress.required": "Address is required",
	"customerCity.required":    "City is required",
	"customerZipCode.required": "Zip code is required",
	"text.max":                 "Custom text must be at most 50 characters",
}

// IsEmail reports whether s looks like an email address
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// New returns a validator that reports fields by their JSON names and knows
// the "storeemail" tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("storeemail", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	return v
}

// FieldErrors maps a JSON field name to a human message
type FieldErrors map[string]string

// Fields converts a validation failure to per-field messages. It returns nil
// when err is not a validator.ValidationErrors.
func Fields(err error) FieldErrors {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(FieldErrors, len(ve))
	for _, fe := range ve {
		key := fe.Field()
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	if m, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be below %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
