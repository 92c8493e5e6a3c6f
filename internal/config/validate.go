package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/formbricks/insights/internal/huberrors"
)

// validate is safe for concurrent use once init has finished registering.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report the environment variable instead of the Go field name.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("env"); name != "" {
			return name
		}

		return field.Name
	})
}

// validateConfig checks struct tags and returns one ConfigurationError per violation.
func validateConfig(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validate config: %w", err)
	}

	errs := make([]error, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		errs = append(errs, huberrors.NewConfigurationError(fieldError.Field(), formatFieldError(fieldError)))
	}

	return errors.Join(errs...)
}

// formatFieldError formats a single field validation error.
func formatFieldError(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required", "required_if", "required_with":
		return "is required"
	case "gt":
		return "must be greater than " + fieldError.Param()
	case "gte":
		return "must be greater than or equal to " + fieldError.Param()
	case "lte":
		return "must be less than or equal to " + fieldError.Param()
	case "gtefield":
		return "must not be lower than " + fieldError.Param()
	case "oneof":
		return "must be one of: " + fieldError.Param()
	default:
		return "is invalid"
	}
}
