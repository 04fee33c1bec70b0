// Package errors defines the failure taxonomy shared by the triage pipeline.
//
// Four classes drive propagation policy:
//
//   - ErrConfiguration: a precondition is missing (e.g. no indicators directory). Fatal.
//   - ErrParse: an artifact could not be salvaged. Recorded per module.
//   - ErrNetwork: a remote request failed. That feed entry is skipped.
//   - ErrFormat: an indicator file or index document is malformed. That file is skipped.
//
// The transport sentinels (ErrTimeout, ErrNotFound, ...) refine ErrNetwork and are
// produced by the HTTP client.
package errors

import (
	"errors"
	"fmt"
)

// Taxonomy sentinels
var (
	// ErrConfiguration indicates a missing or unusable precondition
	ErrConfiguration = errors.New("configuration error")

	// ErrParse indicates artifact input that cannot be partially salvaged
	ErrParse = errors.New("parse error")

	// ErrNetwork indicates a remote request failed
	ErrNetwork = errors.New("network error")

	// ErrFormat indicates a malformed indicator file or index document
	ErrFormat = errors.New("format error")
)

// Transport sentinels
var (
	ErrTimeout            = errors.New("operation timed out")
	ErrRateLimit          = errors.New("rate limit exceeded")
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInvalidResponse    = errors.New("invalid response")
)

// wrappedError carries a context message and an optional class on top of a cause.
type wrappedError struct {
	msg   string
	class error
	cause error
}

func (e *wrappedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *wrappedError) Unwrap() []error {
	if e.class == nil {
		return []error{e.cause}
	}
	return []error{e.class, e.cause}
}

// Wrap wraps an error with additional context message.
// If err is nil, Wrap returns nil.
//
// Example:
//
//	data, err := afero.ReadFile(fs, path)
//	if err != nil {
//	    return errors.Wrap(err, "read indicators file")
//	}
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: msg, cause: err}
}

// Wrapf wraps an error with a formatted context message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: fmt.Sprintf(format, args...), cause: err}
}

// Classify wraps err so that it matches class with Is while keeping the
// original chain. If err is nil, Classify returns nil.
//
// Example:
//
//	if !gjson.ValidBytes(data) {
//	    return errors.Classify(errors.ErrFormat, errors.New("invalid json"), path)
//	}
func Classify(class, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: msg, class: class, cause: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// New creates a new error with the given message.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf formats according to a format specifier and returns the string as a value that satisfies error.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Join returns an error that wraps the given errors.
// Any nil error values are discarded.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsConfiguration reports whether the error is fatal for the run.
func IsConfiguration(err error) bool { return Is(err, ErrConfiguration) }

// IsParse reports whether the error is an artifact parse failure.
func IsParse(err error) bool { return Is(err, ErrParse) }

// IsFormat reports whether the error is a malformed file or document.
func IsFormat(err error) bool { return Is(err, ErrFormat) }

// IsNetwork reports whether the error came from a remote request. Transport
// sentinels count as network errors too.
func IsNetwork(err error) bool {
	return Is(err, ErrNetwork) ||
		Is(err, ErrTimeout) ||
		Is(err, ErrRateLimit) ||
		Is(err, ErrNotFound) ||
		Is(err, ErrUnauthorized) ||
		Is(err, ErrServiceUnavailable)
}

// IsTimeout reports whether the error is a timeout error
func IsTimeout(err error) bool { return Is(err, ErrTimeout) }

// IsRateLimit reports whether the error is a rate limit error
func IsRateLimit(err error) bool { return Is(err, ErrRateLimit) }

// IsNotFound reports whether the error is a not found error
func IsNotFound(err error) bool { return Is(err, ErrNotFound) }

// Kind returns a short label for the class of err, used in reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfiguration(err):
		return "configuration"
	case IsParse(err):
		return "parse"
	case IsFormat(err):
		return "format"
	case IsNetwork(err):
		return "network"
	default:
		return "internal"
	}
}
