package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if label := field.Tag.Get("label"); label != "" {
			return label
		}
		return field.Name
	})
}

// ValidateRequest validates a decoded form against its validation tags.
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format.
// Field names come from the struct's label tags.
func FormatValidationErrors(err error) []ValidationError {
	var out []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			out = append(out, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return out
}

// FirstValidationMessage returns the message for the first failing field,
// in struct order, or err's text when it is not a validation failure.
func FirstValidationMessage(err error) string {
	if formatted := FormatValidationErrors(err); len(formatted) > 0 {
		return formatted[0].Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func getErrorMessage(e validator.FieldError) string {
	label := e.Field()
	isText := e.Kind() == reflect.String

	switch e.Tag() {
	case "required":
		return label + " is required."
	case "email":
		return "Please enter a valid email address."
	case "url", "http_url":
		return label + " must be a valid URL."
	case "eqfield":
		return label + " do not match."
	case "min":
		if isText {
			return label + " must be at least " + e.Param() + " characters long."
		}
		return label + " must be at least " + e.Param() + "."
	case "max":
		if isText {
			return label + " must be at most " + e.Param() + " characters long."
		}
		return label + " must be at most " + e.Param() + "."
	case "gte":
		return label + " must be greater than or equal to " + e.Param() + "."
	case "lte":
		return label + " must be less than or equal to " + e.Param() + "."
	case "gt":
		return label + " must be greater than " + e.Param() + "."
	case "lt":
		return label + " must be less than " + e.Param() + "."
	case "ne":
		return label + " must not be " + strings.TrimSpace(e.Param()) + "."
	default:
		return label + " is invalid."
	}
}
