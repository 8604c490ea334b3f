package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("access forbidden")
	ErrRecordNotFound     = errors.New("record not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("email or meter number already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStorage            = errors.New("storage unavailable")
	ErrBillImageUpload    = errors.New("bill image upload failed")
	ErrStatusConflict     = errors.New("payment status changed concurrently")
)

// Validation failure reasons. They are part of the API contract.
const (
	ReasonRequired        = "required"
	ReasonNotANumber      = "not_a_number"
	ReasonNonPositive     = "non_positive"
	ReasonNegative        = "negative"
	ReasonNotGreater      = "not_greater_than_previous"
	ReasonInvalidDate     = "invalid_date"
	ReasonInvalidStatus   = "invalid_status"
	ReasonUnsupportedType = "unsupported_type"
	ReasonTooLarge        = "too_large"
	ReasonTooShort        = "too_short"
	ReasonInvalidEmail    = "invalid_email"
	ReasonInvalidMove     = "invalid_transition"
)

// ValidationError is a user-correctable input failure bound to a single field.
type ValidationError struct {
	Field   string
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, reason, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewValidationError builds a ValidationError for callers outside the domain package.
func NewValidationError(field, reason, message string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Message: message}
}
