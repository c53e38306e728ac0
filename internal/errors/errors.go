// Package errors defines the structured error taxonomy of the converter.
package errors

import (
	"fmt"
)

// Code identifies a class of conversion failure.
type Code string

const (
	// CodeMalformedPath is returned when a store URI has no key segment.
	CodeMalformedPath Code = "MALFORMED_PATH"
	// CodeStoreUnavailable is returned when a container is missing or inaccessible.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	// CodeParse is returned when JSONL content is not a sequence of JSON objects.
	CodeParse Code = "PARSE_ERROR"
	// CodeEncoding is returned when a field value cannot be encoded as a feature.
	CodeEncoding Code = "ENCODING_ERROR"
)

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrMalformedPath    = &Error{code: CodeMalformedPath, message: "malformed path"}
	ErrStoreUnavailable = &Error{code: CodeStoreUnavailable, message: "store unavailable"}
	ErrParse            = &Error{code: CodeParse, message: "parse error"}
	ErrEncoding         = &Error{code: CodeEncoding, message: "encoding error"}
)

// Error is a concrete error type with a code, a message and optional details.
type Error struct {
	code       Code
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		code:    code,
		message: message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

// Predefined error constructors for common cases

// MalformedPath creates an error for a URI without a key segment.
func MalformedPath(uri string) *Error {
	return Newf(CodeMalformedPath, "malformed path %q: expected scheme://container/key", uri).WithDetail("uri", uri)
}

// StoreUnavailable creates an error for a container that cannot be used.
func StoreUnavailable(container string, err error) *Error {
	return Newf(CodeStoreUnavailable, "container %q is unavailable", container).WithDetail("container", container).Wrap(err)
}

// Parse creates an error for invalid JSONL content at a 1-based line number.
func Parse(line int, err error) *Error {
	return Newf(CodeParse, "line %d: invalid JSONL", line).WithDetail("line", line).Wrap(err)
}

// Encoding creates an error for a field whose value cannot become a feature.
func Encoding(field, reason string) *Error {
	return Newf(CodeEncoding, "field %q: %s", field, reason).WithDetail("field", field)
}
