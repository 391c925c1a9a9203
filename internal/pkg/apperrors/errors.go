package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrConflict = errors.New("resource conflict")

	// ErrLoanClosed rejects mutations against a loan already released.
	ErrLoanClosed = errors.New("loan is already closed")

	// ErrIntegrity signals derived ledger state that violates an invariant,
	// such as outstanding principal going negative. Never auto-corrected.
	ErrIntegrity = errors.New("ledger integrity violation")

	// ErrTransient marks failures that are safe for the caller to retry,
	// typically persistence timeouts or broker unavailability.
	ErrTransient = errors.New("transient failure")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	ErrUnauthorized = errors.New("unauthorized")

	ErrForbidden = errors.New("forbidden")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}

// NewIntegrityError reports a derived-state inconsistency with enough context
// to locate the offending aggregate.
func NewIntegrityError(message string) error {
	return &AppError{
		Code:    "INTEGRITY_ERROR",
		Message: message,
		Cause:   ErrIntegrity,
	}
}
