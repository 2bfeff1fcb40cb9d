package app

import (
	"errors"
	"fmt"

	"contentfactory/internal/avatar"
	"contentfactory/internal/settings"
	"contentfactory/internal/store"
)

type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation"
	KindInvalidInput  Kind = "invalid_input"
	KindProvider      Kind = "provider"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrProvider      = errors.New("provider error")
)

// Error is returned synchronously by Service methods. errors.Is matches it against the
// sentinel of its kind. Invalid input is a validation failure that never depends on
// stored state, so it also matches ErrValidation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if e.Kind == KindInvalidInput && target == ErrValidation {
		return true
	}
	s := sentinel(e.Kind)
	return s != nil && target == s
}

func sentinel(k Kind) error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindInvalidInput:
		return ErrInvalidInput
	case KindProvider:
		return ErrProvider
	default:
		return nil
	}
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// classify attaches a kind to errors coming back from collaborators. Unknown errors are
// returned wrapped as-is.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, avatar.ErrNotConfigured):
		return &Error{Kind: KindConfiguration, Msg: msg, Err: err}
	case errors.Is(err, avatar.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Msg: msg, Err: err}
	case errors.Is(err, avatar.ErrInvalid), errors.Is(err, settings.ErrInvalidValue):
		return &Error{Kind: KindInvalidInput, Msg: msg, Err: err}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// KindOf returns the kind of a service error, or "" for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
