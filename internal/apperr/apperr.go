// Package apperr defines the error kinds surfaced by the cashier engine.
//
// Every failure that reaches a caller is one of four kinds. Validation errors
// abort before any network call, authorization errors carry the backend's
// rejection message, sync errors mean a backend call failed and local state
// was left untouched, and data-integrity errors mean local data is missing a
// reference the operation needs.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindSync
	KindDataIntegrity
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindSync:
		return "sync"
	case KindDataIntegrity:
		return "data_integrity"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified error. Message is what the cashier sees; Err is the
// sentinel or underlying cause kept for errors.Is / errors.As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a sentinel error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies cause as kind, keeping sentinel reachable through errors.Is.
// msg replaces the sentinel's text when non-empty.
func Wrap(kind Kind, sentinel error, msg string) error {
	return &Error{Kind: kind, Message: msg, Err: sentinel}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, sentinel error, format string, args ...any) error {
	return Wrap(kind, sentinel, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// userMessager is implemented by transport errors that carry a message
// produced by the backend (see backend.Error).
type userMessager interface {
	UserMessage() string
}

// MessageOf picks the best human-readable text for err: a backend-provided
// message or exception field first, then fallback.
func MessageOf(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
