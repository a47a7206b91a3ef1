// Package errkind classifies broker-local failures into the taxonomy
// kinds spec'd in §7: validation, exit_error, fatal_error, api_error,
// cancelled, internal. It is a small first-party type, not a borrowed
// network-error classifier — see DESIGN.md for why bassosimone-nop's
// errclass package (socket errno labels) was rejected for this purpose.
package errkind

import (
	"errors"
	"fmt"

	"github.com/cuemby/agentbroker/pkg/types"
)

// Error pairs a classification Kind with a human-readable message. Every
// error that crosses an Invoker boundary is shaped into one of these;
// no other exception type is expected to escape the Invoker except
// context cancellation, which callers detect separately via
// errors.Is(err, context.Canceled).
type Error struct {
	Kind    types.ErrorKind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds a classified error with no underlying cause.
func New(kind types.ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an existing error under kind.
func Wrap(kind types.ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: cause}
}

// KindOf extracts the classification kind from err, defaulting to
// "internal" for anything not produced by this package.
func KindOf(err error) types.ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return types.ErrorInternal
}
