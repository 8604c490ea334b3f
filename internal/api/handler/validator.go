package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/powerbill/electricity-records/internal/core/domain"
)

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validator.Validate
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
// Field names in errors are taken from json tags.
func NewValidator() *echoValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &echoValidator{v: v}
}

// Validate satisfies the echo.Validator interface. The first failing field is
// reported as a *domain.ValidationError.
func (ev *echoValidator) Validate(i any) error {
	if err := ev.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fieldError(ve[0])
		}
		return err
	}
	return nil
}

// fieldError converts a single FieldError into a domain validation error.
func fieldError(fe validator.FieldError) *domain.ValidationError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(field, domain.ReasonRequired, field+" is required")
	case "email":
		return domain.NewValidationError(field, domain.ReasonInvalidEmail, field+" must be a valid email")
	case "min":
		return domain.NewValidationError(field, domain.ReasonTooShort,
			fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
	case "oneof":
		return domain.NewValidationError(field, domain.ReasonInvalidStatus,
			fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
	default:
		return domain.NewValidationError(field, fe.Tag(), fmt.Sprintf("%s failed validation (%s)", field, fe.Tag()))
	}
}
