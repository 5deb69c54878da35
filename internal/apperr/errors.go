// Package apperr defines the error taxonomy shared by the bot's components.
//
// Handlers recover every non-fatal error at the update boundary and turn it
// into a short chat notice with UserMessage. Only DuplicateInstance and
// LockNotAcquired may terminate the process.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrExpired           = errors.New("subscription expired")
	ErrTransport         = errors.New("transport failure")
	ErrDuplicateInstance = errors.New("another instance is consuming updates")
	ErrLockNotAcquired   = errors.New("instance lock not acquired")
)

// Invalid wraps ErrInvalidInput with a user-facing reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsFatal reports whether err must terminate the process.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDuplicateInstance) || errors.Is(err, ErrLockNotAcquired)
}

// UserMessage renders the short notice shown in chat for a recovered error.
func UserMessage(err error) string {
	var reason *reasonError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &reason):
		return reason.msg
	case errors.Is(err, ErrPermissionDenied):
		return "⛔ You are not allowed to do that."
	case errors.Is(err, ErrNotFound):
		return "🔍 Not found."
	case errors.Is(err, ErrConflict):
		return "✅ Already done."
	case errors.Is(err, ErrExpired):
		return "⌛ This group's subscription has expired. Ask a seller to extend it."
	case errors.Is(err, ErrInvalidInput):
		return "⚠️ " + err.Error()
	default:
		return "⚠️ Something went wrong, please try again later."
	}
}

type reasonError struct {
	kind error
	msg  string
}

func (e *reasonError) Error() string { return e.kind.Error() + ": " + e.msg }
func (e *reasonError) Unwrap() error { return e.kind }

// WithReason attaches a user-facing message to one of the sentinel kinds.
func WithReason(kind error, msg string) error {
	return &reasonError{kind: kind, msg: msg}
}
