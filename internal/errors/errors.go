package errors

import (
	"fmt"
	"strings"
)

// Kind categorizes a failure so callers can decide whether a run aborts or a
// batch is isolated and skipped.
type Kind int

const (
	// KindInputMissing - a required document pattern is absent from the repo.
	KindInputMissing Kind = iota
	// KindScanFailed - the repository snapshot could not produce a result.
	KindScanFailed
	// KindLLMBadOutput - structured output failed validation after retries.
	KindLLMBadOutput
	// KindValidationFailed - link endpoints or types violate the vocabulary.
	KindValidationFailed
	// KindGraphConflict - a concurrent writer changed the map since it was read.
	KindGraphConflict
	// KindGraphBackend - graph store I/O failure.
	KindGraphBackend
	// KindTimeout - a suspended operation exceeded its deadline.
	KindTimeout
	// KindInternal - unexpected internal state.
	KindInternal
)

// Fatal kinds abort the current run; the rest are batch-local.
func (k Kind) Fatal() bool {
	switch k {
	case KindInputMissing, KindScanFailed, KindGraphBackend, KindInternal:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindInputMissing:
		return "INPUT_MISSING"
	case KindScanFailed:
		return "SCAN_FAILED"
	case KindLLMBadOutput:
		return "LLM_BAD_OUTPUT"
	case KindValidationFailed:
		return "VALIDATION_FAILED"
	case KindGraphConflict:
		return "GRAPH_CONFLICT"
	case KindGraphBackend:
		return "GRAPH_BACKEND"
	case KindTimeout:
		return "TIMEOUT"
	case KindInternal:
		return "INTERNAL"
	}
	return "UNKNOWN"
}

// Error is a structured error with a kind, an optional cause, and free-form
// context attached along the way up.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind, so errors.Is(err, &Error{Kind: k})
// works across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithContext attaches a key/value pair and returns the error for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// DetailedString renders the error with its kind and context, one line each.
func (e *Error) DetailedString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Kind, e.Message))
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("\ncaused by: %v", e.Cause))
	}
	for k, v := range e.Context {
		sb.WriteString(fmt.Sprintf("\n  %s: %v", k, v))
	}
	return sb.String()
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an existing error. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Wrapf is Wrap with formatting.
func Wrapf(err error, kind Kind, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Convenience constructors, one per kind.

func InputMissing(message string) *Error { return New(KindInputMissing, message) }
func ScanFailed(err error, message string) *Error {
	return Wrap(err, KindScanFailed, message)
}
func LLMBadOutput(err error, message string) *Error {
	return Wrap(err, KindLLMBadOutput, message)
}
func ValidationFailedf(format string, args ...any) *Error {
	return Newf(KindValidationFailed, format, args...)
}
func GraphConflict(message string) *Error { return New(KindGraphConflict, message) }
func GraphBackend(err error, message string) *Error {
	return Wrap(err, KindGraphBackend, message)
}
func Timeout(err error, message string) *Error {
	return Wrap(err, KindTimeout, message)
}
func Internalf(format string, args ...any) *Error {
	return Newf(KindInternal, format, args...)
}

// KindOf returns the kind of an error, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}

// IsFatal reports whether err should abort the current run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Kind.Fatal()
	}
	return true
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
