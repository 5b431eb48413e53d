// Package apierror defines the closed error taxonomy used across the
// gateway. Every failure that reaches the client is classified into one of
// the kinds below and serialized exactly once, at the boundary middleware.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the classification of an error.
type Kind string

// The closed set of error kinds.
const (
	// KindBadRequest indicates malformed input from the caller.
	KindBadRequest Kind = "bad_request"

	// KindAuthentication indicates a missing, invalid, expired, or
	// revoked credential.
	KindAuthentication Kind = "authentication"

	// KindNotFound indicates that a referenced resource does not exist.
	KindNotFound Kind = "not_found"

	// KindOperation indicates an internal failure not attributable to
	// the caller.
	KindOperation Kind = "operation"

	// KindUpstream indicates a failure reported by a proxied backend.
	// Its status and body are re-emitted verbatim.
	KindUpstream Kind = "upstream"
)

// defaultStatus returns the fixed HTTP status for a kind.
func (k Kind) defaultStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Construction never performs I/O; an Error
// is built at the point of failure detection, propagated untouched, and
// converted to a wire response exactly once at the outermost boundary.
type Error struct {
	kind     Kind
	message  string
	field    string
	status   int
	logError bool
	metadata map[string]any
	cause    error

	upstreamBody        []byte
	upstreamContentType string
}

// ErrorItem is a single entry in the serialized error body.
type ErrorItem struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Response is the wire shape of a serialized error.
type Response struct {
	Errors []ErrorItem `json:"errors"`
}

// Option configures an Error at construction time.
type Option func(*Error)

// WithField attaches the offending field name to the error.
func WithField(field string) Option {
	return func(e *Error) { e.field = field }
}

// WithMetadata attaches structured metadata for client consumption.
func WithMetadata(metadata map[string]any) Option {
	return func(e *Error) { e.metadata = metadata }
}

// WithCause attaches the underlying error for logging and unwrapping.
func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// WithoutLogging marks the error as not worth writing to operational logs.
func WithoutLogging() Option {
	return func(e *Error) { e.logError = false }
}

// New creates a classified error of the given kind.
func New(kind Kind, message string, opts ...Option) *Error {
	e := &Error{
		kind:     kind,
		message:  message,
		status:   kind.defaultStatus(),
		logError: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BadRequest creates a 400 error for malformed input.
func BadRequest(message string, opts ...Option) *Error {
	return New(KindBadRequest, message, opts...)
}

// Authentication creates a 401 error for a failed credential.
func Authentication(message string, opts ...Option) *Error {
	return New(KindAuthentication, message, opts...)
}

// NotFound creates a 404 error for a missing resource.
func NotFound(message string, opts ...Option) *Error {
	return New(KindNotFound, message, opts...)
}

// Operation creates a 500 error for an internal failure.
func Operation(message string, opts ...Option) *Error {
	return New(KindOperation, message, opts...)
}

// Upstream creates an error that re-emits a proxied backend's own status
// and body unmodified, overriding the default kind-to-status mapping.
func Upstream(status int, contentType string, body []byte) *Error {
	return &Error{
		kind:                KindUpstream,
		message:             fmt.Sprintf("upstream responded with status %d", status),
		status:              status,
		logError:            status >= http.StatusInternalServerError,
		upstreamBody:        body,
		upstreamContentType: contentType,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is checks if the error matches the target.
func (e *Error) Is(target error) bool {
	var apiErr *Error
	if errors.As(target, &apiErr) {
		return e.kind == apiErr.kind
	}
	return errors.Is(e.cause, target)
}

// Kind returns the error classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	return e.status
}

// Message returns the human-readable message.
func (e *Error) Message() string {
	return e.message
}

// ShouldLog reports whether the error should be written to operational logs.
func (e *Error) ShouldLog() bool {
	return e.logError
}

// Metadata returns the structured metadata attached to the error, if any.
func (e *Error) Metadata() map[string]any {
	return e.metadata
}

// UpstreamBody returns the verbatim upstream body for KindUpstream errors.
func (e *Error) UpstreamBody() (contentType string, body []byte, ok bool) {
	if e.kind != KindUpstream {
		return "", nil, false
	}
	return e.upstreamContentType, e.upstreamBody, true
}

// Serialize converts the error into the standard response shape.
func (e *Error) Serialize() Response {
	return Response{Errors: []ErrorItem{{Message: e.message, Field: e.field}}}
}

// StatusCoder is implemented by errors that carry their own HTTP status,
// such as failures reported by the external identity provider.
type StatusCoder interface {
	error
	StatusCode() int
}

// genericMessage is the client-visible message for unclassified failures.
// Internal details must never leak to the client.
const genericMessage = "an unexpected error occurred"

// From classifies an arbitrary error into the taxonomy.
//
// A *Error passes through untouched. An error carrying its own status code
// (a credential-provider failure) maps to an authentication error with that
// status, or 401 if the status is unusable. Anything else falls back to a
// generic 500 that hides the cause from the client while keeping it
// available for logging.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.StatusCode()
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusUnauthorized
		}
		e := Authentication(sc.Error(), WithCause(err))
		e.status = status
		return e
	}

	return Operation(genericMessage, WithCause(err))
}
