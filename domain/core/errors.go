package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// Fatal errors: abort the whole analysis
	ErrInvalidInput    = errors.New("invalid genotype matrix")
	ErrAssociationTest = errors.New("association test failed")
	ErrMissingPosition = errors.New("variant position missing")

	// Per-variant soft failures
	ErrNoVariantsRemaining = errors.New("no variants remain after exclusion")
	ErrMalformedResult     = errors.New("malformed association test result")
	ErrMultipleOmnibus     = errors.New("association test returned multiple omnibus p-values")
	ErrTestPanicked        = errors.New("association test panicked")
)

// NewInvalidInputError describes a violated matrix precondition
func NewInvalidInputError(reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(reason, args...))
}

// NewMalformedResultError describes why a test result was rejected
func NewMalformedResultError(reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedResult, fmt.Sprintf(reason, args...))
}

// NewMissingPositionError names the variant lacking position metadata
func NewMissingPositionError(variantID VariantID) error {
	return fmt.Errorf("%w for variant %s", ErrMissingPosition, variantID)
}

// NewRunNotFoundError names the missing run
func NewRunNotFoundError(id RunID) error {
	return fmt.Errorf("%w with id %s", ErrRunNotFound, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
