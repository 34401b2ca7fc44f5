// Package apperr defines the error kinds shared by every domain package.
//
// Domain errors carry a Kind so the transport layer can pick a response
// status with one table lookup instead of matching individual sentinels.
// Kinds survive wrapping with %w or errors.Wrap.
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind classifies a domain error.
type Kind int

const (
	// Internal is the kind of every error that does not declare one.
	Internal Kind = iota
	NotFound
	Validation
	Conflict
	Unauthorized
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is a domain error with a fixed kind and message. Sentinel values
// compare by identity, so errors.Is works across wrapping.
type Error struct {
	kind Kind
	msg  string
}

// New returns a domain error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind reports the error kind.
func (e *Error) Kind() Kind { return e.kind }

type kinded interface {
	error
	Kind() Kind
}

// KindOf returns the kind of the first error in err's chain that declares one.
// It returns Internal when nothing in the chain declares a kind, including nil.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Internal
}

// Describe returns the kind and the message of the first kinded error in
// err's chain. Wrapping context added above it is dropped so the message is
// safe to show to clients. ok is false when the chain has no kind.
func Describe(err error) (kind Kind, msg string, ok bool) {
	var k kinded
	if !errors.As(err, &k) {
		return Internal, "", false
	}
	return k.Kind(), k.Error(), true
}
