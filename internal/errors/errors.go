// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrTradeNotFound        = errors.New("trade not found")
	ErrProfileNotFound      = errors.New("import profile not found")
	ErrInvalidProfile       = errors.New("invalid import profile")
	ErrBuiltInProfile       = errors.New("built-in profiles are read-only")
	ErrUnsupportedDelimiter = errors.New("unsupported delimiter")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrStoreUnavailable     = errors.New("trade store not initialized")
	ErrImportRejected       = errors.New("import rejected by strict mode")
)

// ProfileError represents a problem with an import profile definition.
type ProfileError struct {
	Key     string
	Field   string
	Message string
}

func (e *ProfileError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("profile error [%s] %s: %s", e.Key, e.Field, e.Message)
	}
	return fmt.Sprintf("profile error [%s]: %s", e.Key, e.Message)
}

// Unwrap lets callers match any ProfileError against ErrInvalidProfile.
func (e *ProfileError) Unwrap() error {
	return ErrInvalidProfile
}

// NewProfileError creates a new ProfileError.
func NewProfileError(key, field, message string) *ProfileError {
	return &ProfileError{
		Key:     key,
		Field:   field,
		Message: message,
	}
}

// ReconcileError reports a persistence failure part-way through a reconcile
// batch. Created and Updated count the writes that succeeded before the
// failing candidate; those writes are not rolled back.
type ReconcileError struct {
	Index   int
	Market  string
	Op      string
	Created int
	Updated int
	Err     error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile error [%d] %s %s (created: %d, updated: %d): %v",
		e.Index, e.Op, e.Market, e.Created, e.Updated, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// NewReconcileError creates a new ReconcileError.
func NewReconcileError(index int, market, op string, created, updated int, err error) *ReconcileError {
	return &ReconcileError{
		Index:   index,
		Market:  market,
		Op:      op,
		Created: created,
		Updated: updated,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
