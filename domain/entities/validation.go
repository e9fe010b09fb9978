package entities

import (
	"github.com/go-playground/validator/v10"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = NewValidator()

// NewValidator returns a validator with the broker's custom tags registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	RegisterValidations(v)
	return v
}

// RegisterValidations installs the "caip10" tag on v.
func RegisterValidations(v *validator.Validate) {
	// RegisterValidation only fails on an empty tag or nil func.
	_ = v.RegisterValidation("caip10", func(fl validator.FieldLevel) bool {
		return IsCAIP10(fl.Field().String())
	})
}

// ValidateStruct runs struct-tag validation on any entity.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// ValidationResult represents the outcome of validating a payload.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError represents a specific validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
