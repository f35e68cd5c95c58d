// Package apperr defines the closed set of error kinds shared by the miner,
// resolver and remediation components.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without inspecting messages.
type Kind int

const (
	// Unknown is reported for errors that carry no kind.
	Unknown Kind = iota
	// Network is a transient remote failure (transport, 429, 5xx, bad response).
	Network
	// Decode means a payload does not match the expected binary schema.
	Decode
	// Validation is a structural precondition violation on a decoded record.
	Validation
	// Credential is a missing or unreadable signing key.
	Credential
	// Store is a local persistence failure.
	Store
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Decode:
		return "decode"
	case Validation:
		return "validation"
	case Credential:
		return "credential"
	case Store:
		return "store"
	default:
		return "unknown"
	}
}

// Error is a kinded error with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind. Returns nil if err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a kinded error from a format string.
func Newf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost kinded error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Fatal reports whether err must abort the whole run.
func Fatal(err error) bool {
	switch KindOf(err) {
	case Credential, Store:
		return true
	default:
		return false
	}
}
