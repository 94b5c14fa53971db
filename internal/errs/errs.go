package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by where it must be handled.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindValidation     Kind = "validation"
	KindPersistence    Kind = "persistence"
	KindInternal       Kind = "internal"
)

// Error is the application error. Message is safe to show to the client,
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Authentication reports a missing, malformed, expired or unverifiable token.
func Authentication(message string, err error) *Error {
	return newError(KindAuthentication, message, err)
}

// Validation reports a malformed inbound payload.
func Validation(message string, err error) *Error {
	return newError(KindValidation, message, err)
}

// Persistence reports a message store failure.
func Persistence(message string, err error) *Error {
	return newError(KindPersistence, message, err)
}

// Internal reports anything else.
func Internal(message string, err error) *Error {
	return newError(KindInternal, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// PublicMessage returns the client-facing message for err.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "internal error"
}
