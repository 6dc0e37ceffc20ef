package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a user, quiz, theme or question does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a star gate is closed or a correction is requested too early.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState is returned when the ledger does not allow the requested operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientFunds is returned when the star balance is below a required cost.
	ErrInsufficientFunds = errors.New("insufficient stars")
	// ErrValidation is returned for malformed payloads.
	ErrValidation = errors.New("validation failed")
	// ErrRetryable marks a storage failure that rolled back; the caller may retry.
	ErrRetryable = errors.New("temporary storage failure")
)

// Error carries a kind plus the figures a client needs to render the failure.
type Error struct {
	Kind    error
	Message string
	Context map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the kind so errors.Is(err, ErrInvalidState) works.
func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError builds an Error of the given kind.
func NewError(kind error, message string, context map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Context: context}
}

// NotFound is shorthand for a missing entity.
func NotFound(entity, id string) *Error {
	return NewError(ErrNotFound, entity+" not found", map[string]any{entity + "Id": id})
}

// Kind returns the sentinel kind of err, or nil when err is not a domain error.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrForbidden, ErrInvalidState, ErrInsufficientFunds, ErrValidation, ErrRetryable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ErrorContext returns the context attached to a domain error, if any.
func ErrorContext(err error) map[string]any {
	var de *Error
	if errors.As(err, &de) {
		return de.Context
	}
	return nil
}
