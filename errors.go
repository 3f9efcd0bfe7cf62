package xogen

import (
	"errors"
	"fmt"
)

// Kind classifies provider failures.
type Kind int

const (
	// KindUnknown is reported for errors that did not come from this package.
	KindUnknown Kind = iota
	// KindConfig marks setup failures from Initialize: unreachable backend,
	// invalid credentials, missing model artifact.
	KindConfig
	// KindInvalidRequest marks caller-supplied parameters the backend cannot
	// accept. Retrying without changing the request will not help.
	KindInvalidRequest
	// KindBackend marks transient or permanent failures of the backend
	// itself: network errors, quota exhaustion, malformed responses.
	KindBackend
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrConfig         = errors.New("provider configuration error")
	ErrInvalidRequest = errors.New("invalid generation request")
	ErrBackend        = errors.New("provider backend failure")
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInvalidRequest:
		return "invalid request"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindBackend:
		return ErrBackend
	default:
		return nil
	}
}

// Error is the concrete error type returned by providers.
type Error struct {
	Kind     Kind
	Provider string // provider ID, may be empty
	// Transient is a hint that the same request may succeed later. Only
	// meaningful for KindBackend.
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	msg := "<nil>"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// ConfigError wraps err as a configuration error.
func ConfigError(provider string, err error) error {
	return &Error{Kind: KindConfig, Provider: provider, Err: err}
}

// ConfigErrorf formats a configuration error.
func ConfigErrorf(provider, format string, args ...any) error {
	return ConfigError(provider, fmt.Errorf(format, args...))
}

// InvalidRequestError wraps err as an invalid-request error.
func InvalidRequestError(provider string, err error) error {
	return &Error{Kind: KindInvalidRequest, Provider: provider, Err: err}
}

// InvalidRequestErrorf formats an invalid-request error.
func InvalidRequestErrorf(provider, format string, args ...any) error {
	return InvalidRequestError(provider, fmt.Errorf(format, args...))
}

// BackendError wraps err as a backend failure.
func BackendError(provider string, transient bool, err error) error {
	return &Error{Kind: KindBackend, Provider: provider, Transient: transient, Err: err}
}

// BackendErrorf formats a backend failure.
func BackendErrorf(provider string, transient bool, format string, args ...any) error {
	return BackendError(provider, transient, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient reports whether err is a backend failure marked transient.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindBackend && e.Transient
}
