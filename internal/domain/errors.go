package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies recoverable failures so callers can branch on them
// without string matching. The set is closed; transports map each kind to
// their own status codes.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindValidation        ErrorKind = "validation"
	KindNoCurrentActivity ErrorKind = "no_current_activity"
	KindNothingToUndo     ErrorKind = "nothing_to_undo"
	KindAlreadyStarted    ErrorKind = "already_started"
)

// Error carries a machine-readable kind alongside the human message.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NewError constructs an Error with the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf constructs an Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return Errorf(KindNotFound, format, args...)
}

// KindOf extracts the ErrorKind from err, if it wraps a domain Error.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}
