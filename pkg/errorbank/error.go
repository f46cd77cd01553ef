// Package errorbank defines the application error type shared by the HTTP and
// gRPC transports. Messages are safe to show to clients; causes are not.
package errorbank

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind enumerates supported application error categories.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindNotFound            Kind = "not_found"
	KindUnprocessableEntity Kind = "unprocessable_entity"
	KindInternal            Kind = "internal"
)

type kindInfo struct {
	status int
	code   codes.Code
}

var kinds = map[Kind]kindInfo{
	KindBadRequest:          {status: http.StatusBadRequest, code: codes.InvalidArgument},
	KindNotFound:            {status: http.StatusNotFound, code: codes.NotFound},
	KindUnprocessableEntity: {status: http.StatusUnprocessableEntity, code: codes.InvalidArgument},
	KindInternal:            {status: http.StatusInternalServerError, code: codes.Internal},
}

// AppError carries a client-facing message plus optional per-field messages
// and an internal cause.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	fields  map[string][]string
	cause   error
}

// Option mutates an AppError during construction.
type Option func(*AppError)

// WithCause attaches an underlying error. It is reported by Error and Unwrap
// but never by Message.
func WithCause(err error) Option {
	return func(e *AppError) { e.cause = err }
}

// WithDetail adds a single named detail value.
func WithDetail(key string, value any) Option {
	return func(e *AppError) {
		if e.details == nil {
			e.details = make(map[string]any)
		}
		e.details[key] = value
	}
}

// WithFieldErrors attaches per-field messages. Repeated options append.
func WithFieldErrors(fields map[string][]string) Option {
	return func(e *AppError) {
		if len(fields) == 0 {
			return
		}
		if e.fields == nil {
			e.fields = make(map[string][]string, len(fields))
		}
		for field, msgs := range fields {
			e.fields[field] = append(e.fields[field], msgs...)
		}
	}
}

// New constructs an AppError. An empty message falls back to the kind name.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	e := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BadRequest constructs a 400 error.
func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

// NotFound constructs a 404 error.
func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// Unprocessable constructs a 422 error, used for input that fails validation.
func Unprocessable(message string, opts ...Option) *AppError {
	return New(KindUnprocessableEntity, message, opts...)
}

// Internal constructs a 500 error.
func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the error category. A nil error reports KindInternal.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

// Message returns the client-facing message.
func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Details returns optional metadata about the error.
func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// FieldErrors returns per-field messages, if any were attached.
func (e *AppError) FieldErrors() map[string][]string {
	if e == nil {
		return nil
	}
	return e.fields
}

// StatusCode resolves the HTTP status for the error kind.
func (e *AppError) StatusCode() int {
	return e.info().status
}

// GRPCCode maps the error kind onto a gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	return e.info().code
}

func (e *AppError) info() kindInfo {
	if info, ok := kinds[e.Kind()]; ok {
		return info
	}
	return kinds[KindInternal]
}

// From returns the AppError in err's chain, or wraps err as an internal error
// with a generic message.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", WithCause(err))
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind() == kind
}
