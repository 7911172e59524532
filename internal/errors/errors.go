package errors

import (
	"fmt"
)

// CoreError is the structured error type returned across the relatedness
// core's public surface.
type CoreError struct {
	// Kind is one of the terminal kinds enumerated in codes.go.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs (e.g. seed id,
	// failing slice index, offending dimension).
	Details map[string]string

	// Cause is the underlying error that produced this one.
	Cause error

	// Retryable indicates whether the caller may reasonably retry.
	Retryable bool
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, target) to match by kind.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *CoreError) WithDetail(key, value string) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a CoreError of the given kind. Category, severity, and the
// retryable flag are derived from the kind.
func New(kind Kind, message string, cause error) *CoreError {
	return &CoreError{
		Kind:      kind,
		Message:   message,
		Category:  categoryForKind(kind),
		Severity:  severityForKind(kind),
		Cause:     cause,
		Retryable: retryableForKind(kind),
	}
}

// Wrap creates a CoreError from an existing error, reusing its message.
func Wrap(kind Kind, err error) *CoreError {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// NotFound creates a KindNotFound error for a missing seed work item.
func NotFound(message string, cause error) *CoreError {
	return New(KindNotFound, message, cause)
}

// TrackerUnavailable creates a KindTrackerUnavailable error.
func TrackerUnavailable(message string, cause error) *CoreError {
	return New(KindTrackerUnavailable, message, cause)
}

// EmbeddingUnavailable creates a KindEmbeddingUnavailable error.
func EmbeddingUnavailable(message string, cause error) *CoreError {
	return New(KindEmbeddingUnavailable, message, cause)
}

// IndexCorrupt creates a KindIndexCorrupt error.
func IndexCorrupt(message string, cause error) *CoreError {
	return New(KindIndexCorrupt, message, cause)
}

// Timeout creates a KindTimeout error.
func Timeout(message string, cause error) *CoreError {
	return New(KindTimeout, message, cause)
}

// Internal creates a KindInternal error for invariant violations.
func Internal(message string, cause error) *CoreError {
	return New(KindInternal, message, cause)
}

// IsRetryable reports whether err is a CoreError marked retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CoreError); ok {
		return ce.Retryable
	}
	return false
}

// IsFatal reports whether err is a CoreError with fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CoreError); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetKind extracts the Kind from err, or "" if err is not a CoreError.
func GetKind(err error) Kind {
	if ce, ok := err.(*CoreError); ok {
		return ce.Kind
	}
	return ""
}

// GetCategory extracts the Category from err, or "" if err is not a CoreError.
func GetCategory(err error) Category {
	if ce, ok := err.(*CoreError); ok {
		return ce.Category
	}
	return ""
}
