package errors

import (
	stderrors "errors"
	"fmt"

	"loostaar/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError carrying the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Cause == nil
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping its code
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if err is or wraps an AppError, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeAssociationTest = "ASSOCIATION_TEST_ERROR"
	CodeMissingPosition = "MISSING_POSITION"
)

// Code-only targets for errors.Is
var (
	ErrInvalidInput    = &AppError{Code: CodeInvalidInput}
	ErrAssociationTest = &AppError{Code: CodeAssociationTest}
	ErrMissingPosition = &AppError{Code: CodeMissingPosition}
	ErrConfigInvalid   = &AppError{Code: CodeConfigInvalid}
	ErrNotFound        = &AppError{Code: CodeNotFound}
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func NotFound(resource string, cause error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Cause:   cause,
	}
}

// InvalidInput reports a structural problem with the genotype matrix.
// cause should wrap core.ErrInvalidInput.
func InvalidInput(cause error) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: "invalid input",
		Cause:   cause,
	}
}

// AssociationTestError reports a failed baseline association test call
func AssociationTestError(backend string, cause error) *AppError {
	if !stderrors.Is(cause, core.ErrAssociationTest) {
		cause = fmt.Errorf("%w: %w", core.ErrAssociationTest, cause)
	}
	return &AppError{
		Code:    CodeAssociationTest,
		Message: fmt.Sprintf("baseline %s association test failed", backend),
		Cause:   cause,
	}
}

// MissingPositionError reports variants that cannot be placed on the plot
func MissingPositionError(cause error) *AppError {
	return &AppError{
		Code:    CodeMissingPosition,
		Message: "cannot plot influence",
		Cause:   cause,
	}
}
