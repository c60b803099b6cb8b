package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the stable, machine readable code carried by every error
// surfaced to clients.
type ErrorKind string

const (
	KindBadRequest           ErrorKind = "bad_request"
	KindUnauthorized         ErrorKind = "unauthorized"
	KindInvalidToken         ErrorKind = "invalid_token"
	KindNotFound             ErrorKind = "not_found"
	KindFileNotFound         ErrorKind = "file_not_found"
	KindAccessDenied         ErrorKind = "access_denied"
	KindUnsupportedMediaType ErrorKind = "unsupported_media_type"
	KindPayloadTooLarge      ErrorKind = "payload_too_large"
	KindUpstreamUnavailable  ErrorKind = "upstream_unavailable"
	KindServiceError         ErrorKind = "server_error"
)

var kindStatus = map[ErrorKind]int{
	KindBadRequest:           http.StatusBadRequest,
	KindUnauthorized:         http.StatusUnauthorized,
	KindInvalidToken:         http.StatusUnauthorized,
	KindNotFound:             http.StatusNotFound,
	KindFileNotFound:         http.StatusNotFound,
	KindAccessDenied:         http.StatusForbidden,
	KindUnsupportedMediaType: http.StatusUnsupportedMediaType,
	KindPayloadTooLarge:      http.StatusRequestEntityTooLarge,
	KindUpstreamUnavailable:  http.StatusBadGateway,
	KindServiceError:         http.StatusInternalServerError,
}

// Error is the tagged error type returned by services. Callers switch on
// Kind instead of checking concrete types.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and a client-safe message to an underlying error.
func WrapError(kind ErrorKind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err. Anything that is not a *Error is a
// server error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServiceError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message that is safe to show a client. Server
// errors never leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindServiceError {
		return e.Message
	}
	return "internal server error"
}
