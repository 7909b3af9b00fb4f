package handlers

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/palisade-auth/palisade/internal/models"
)

// Shared validator instance, reused across all handlers.
var validate = validator.New()

// ValidateRequest validates a request DTO against its struct tags. The first
// failing field is returned as a models.ValidationError, which is safe to
// echo back to the caller verbatim.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
		fe := ve[0]
		return &models.ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: formatValidationError(fe),
		}
	}

	return &models.ValidationError{Message: "invalid request"}
}

// formatValidationError converts a validator FieldError to a user-facing message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must have a minimum of " + fe.Param() + " characters"
	case "max":
		return "must have a maximum of " + fe.Param() + " characters"
	default:
		return "failed validation: " + fe.Tag()
	}
}
