// Package errors defines the error taxonomy shared by the indexer, the
// searcher and their HTTP boundary, and maps errors to stable status codes
// and machine-readable codes.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrCorruptFormat = errors.New("corrupt format")
	ErrIO            = errors.New("i/o error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrUnavailable   = errors.New("service unavailable")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// FormatError reports a structurally invalid artifact: a bad length field,
// a truncated entry or frame, or an unexpected end of buffer. Offset is the
// byte position at which decoding stopped, or the record index when decoding
// an already parsed record list.
type FormatError struct {
	Format string
	Offset int64
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("corrupt %s at offset %d: %s", e.Format, e.Offset, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return ErrCorruptFormat
}

// Corrupt builds a FormatError.
func Corrupt(kind string, offset int64, reason string, args ...any) *FormatError {
	return &FormatError{
		Format: kind,
		Offset: offset,
		Reason: fmt.Sprintf(reason, args...),
	}
}

// IOError wraps a filesystem failure (missing, unreadable or unwritable
// file). errors.Is matches both ErrIO and the underlying cause.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// IO wraps err as an IOError. A nil err yields nil.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// ErrorBody is the stable JSON envelope returned by the HTTP layer.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Body builds the response envelope for err. Client errors keep their
// message; server-side failures are reported without internals.
func Body(err error) ErrorBody {
	code := Code(err)
	msg := err.Error()
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		msg = appErr.Message
	case code == "timeout":
		msg = "request timed out"
	case code == "unavailable":
		msg = "service unavailable"
	case HTTPStatusCode(err) >= http.StatusInternalServerError:
		msg = "internal error"
	}
	return ErrorBody{Error: ErrorDetail{Code: code, Message: msg}}
}

// WriteHTTP writes err as a JSON envelope with its mapped status code.
func WriteHTTP(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatusCode(err))
	json.NewEncoder(w).Encode(Body(err))
}

// Code returns a stable, machine-readable identifier for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return "invalid_input"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrCorruptFormat):
		return "corrupt_artifact"
	case errors.Is(err, ErrIO):
		return "storage_error"
	default:
		return "internal"
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
