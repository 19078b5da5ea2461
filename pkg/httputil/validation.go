package httputil

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/medsupply/indent-backend/pkg/errors"
)

var validate = validator.New()

// scriptPattern matches HTML tags and javascript: URIs. Decision comments
// and edit reasons are rejected outright when they contain either; the core
// never sanitizes, it refuses.
var scriptPattern = regexp.MustCompile(`(?i)(<[^>]*>|javascript:|on\w+\s*=)`)

func init() {
	validate.RegisterValidation("safetext", func(fl validator.FieldLevel) bool {
		return !scriptPattern.MatchString(fl.Field().String())
	})
}

// Validate validates a struct using go-playground/validator
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		details := make(map[string]string)

		for _, e := range validationErrors {
			details[e.Field()] = formatValidationError(e)
		}

		return errors.Validation(details)
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "must be at least " + e.Param() + " characters"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + e.Param()
	case "safetext":
		return "must not contain HTML or script content"
	default:
		return "invalid value"
	}
}

// RegisterCustomValidation registers a custom validation function
func RegisterCustomValidation(tag string, fn validator.Func) error {
	return validate.RegisterValidation(tag, fn)
}
