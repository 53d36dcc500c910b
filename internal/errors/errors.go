// Package errors provides structured error types for the gridtext index
// layer. All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by index subsystem.
type ErrorCategory string

const (
	ErrCategoryConfig    ErrorCategory = "CONFIG"
	ErrCategoryMapping   ErrorCategory = "MAPPING"
	ErrCategoryPartition ErrorCategory = "PARTITION"
	ErrCategorySearch    ErrorCategory = "SEARCH"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeSchemaRequired   = "SCHEMA_REQUIRED"
	CodeBadPayload       = "BAD_PAYLOAD"
	CodeBadOption        = "BAD_OPTION"
	CodeDuplicateField   = "DUPLICATE_FIELD"
	CodeMissingParameter = "MISSING_PARAMETER"
	CodeUnknownAnalyzer  = "UNKNOWN_ANALYZER"
	CodeRebuildRequired  = "REBUILD_REQUIRED"

	// Mapping codes
	CodeCoercionFailed  = "COERCION_FAILED"
	CodeValueOutOfRange = "VALUE_OUT_OF_RANGE"

	// Partition codes
	CodeContextRequired   = "CONTEXT_REQUIRED"
	CodeBadPartitionCount = "BAD_PARTITION_COUNT"

	// Search codes
	CodeSearchTimeout  = "TIMEOUT"
	CodePartialFailure = "PARTIAL_FAILURE"
	CodeEngineFailure  = "ENGINE_FAILURE"
	CodeIndexDropped   = "INDEX_DROPPED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// GridtextError is the structured error type used throughout the index layer.
type GridtextError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]any
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *GridtextError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *GridtextError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *GridtextError) Is(target error) bool {
	var t *GridtextError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new GridtextError.
func New(category ErrorCategory, code, message string) *GridtextError {
	return &GridtextError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Newf creates a new GridtextError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...any) *GridtextError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new GridtextError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *GridtextError {
	return &GridtextError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *GridtextError) WithDetails(details map[string]any) *GridtextError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ge *GridtextError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a GridtextError.
func GetCategory(err error) ErrorCategory {
	var ge *GridtextError
	if errors.As(err, &ge) {
		return ge.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a GridtextError.
func GetCode(err error) string {
	var ge *GridtextError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Configuration and
// compile-time failures are deterministic and never retried; only transient
// search-side failures qualify.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategorySearch && code == CodeSearchTimeout:
		return true
	case category == ErrCategorySearch && code == CodeEngineFailure:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigError(code, format string, args ...any) *GridtextError {
	return Newf(ErrCategoryConfig, code, format, args...)
}

func NewMappingError(code, format string, args ...any) *GridtextError {
	return Newf(ErrCategoryMapping, code, format, args...)
}

func NewPartitionError(code, format string, args ...any) *GridtextError {
	return Newf(ErrCategoryPartition, code, format, args...)
}

func NewSearchError(code, format string, args ...any) *GridtextError {
	return Newf(ErrCategorySearch, code, format, args...)
}

func NewInternalError(message string, cause error) *GridtextError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
