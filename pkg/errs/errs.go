// Package errs defines the fatal error kinds of the error handling
// design: every one of them is terminal, because any failure leaves
// the tracee in an indeterminate stopped state.
package errs

import "fmt"

// Kind identifies one of the fatal error categories.
type Kind int

const (
	// UsageError is malformed CLI input.
	UsageError Kind = iota
	// IoError is a passphrase file or terminal failure.
	IoError
	// KdfError is a key derivation allocation failure.
	KdfError
	// SpawnError is a fork/exec failure.
	SpawnError
	// TraceError is an unexpected tracing primitive failure.
	TraceError
	// CapacityError is a full Monitored Descriptor Table.
	CapacityError
	// ResourceError is a scratch buffer allocation failure.
	ResourceError
)

func (k Kind) String() string {
	switch k {
	case UsageError:
		return "UsageError"
	case IoError:
		return "IoError"
	case KdfError:
		return "KdfError"
	case SpawnError:
		return "SpawnError"
	case TraceError:
		return "TraceError"
	case CapacityError:
		return "CapacityError"
	case ResourceError:
		return "ResourceError"
	default:
		return "UnknownError"
	}
}

// Error is a fatal error tagged with its Kind, wrapping an underlying
// cause where one exists.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a Error of the given kind with no wrapped cause.
func New(kind Kind, format string, v ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, v...)}
}

// Wrap builds a Error of the given kind around an underlying cause.
func Wrap(kind Kind, cause error, format string, v ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, v...), Cause: cause}
}
