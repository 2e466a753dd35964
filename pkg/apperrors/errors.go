// Package apperrors defines the superFetch error taxonomy and the
// mapping from an internal error code to an HTTP status and a
// JSON-RPC error code.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one member of the superFetch error taxonomy.
type Code string

// The full taxonomy from the server-core specification.
const (
	CodeInvalidURL                Code = "invalid_url"
	CodeBlockedHost                Code = "blocked_host"
	CodeBlockedRedirect            Code = "blocked_redirect"
	CodeResponseTooLarge           Code = "response_too_large"
	CodeUnsupportedMediaType       Code = "unsupported_media_type"
	CodeFetchTimeout               Code = "fetch_timeout"
	CodeFetchNetwork               Code = "fetch_network"
	CodeInvalidToken               Code = "invalid_token"
	CodeUnauthorized               Code = "unauthorized"
	CodeRateLimited                Code = "rate_limited"
	CodeServerBusy                 Code = "server_busy"
	CodeQueueFull                  Code = "queue_full"
	CodeWorkerTimeout              Code = "worker_timeout"
	CodeWorkerBroken               Code = "worker_broken"
	CodeParseError                 Code = "parse_error"
	CodeProtocolVersionUnsupported Code = "protocol_version_unsupported"
	CodeSessionNotFound            Code = "session_not_found"
	CodeInternal                   Code = "internal"
	CodeCanceled                   Code = "canceled"
)

// JSON-RPC 2.0 error codes used at the /mcp endpoint.
const (
	JSONRPCInvalidRequest = -32600
	JSONRPCInternalError  = -32603
	JSONRPCParseError     = -32700
	JSONRPCServerBusy     = -32000
)

// Error is a taxonomy-tagged error carrying its HTTP and JSON-RPC
// representations.
type Error struct {
	Code        Code
	Message     string
	HTTPStatus  int
	JSONRPCCode int
	cause       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying cause without changing the taxonomy code.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

var statusByCode = map[Code]int{
	CodeInvalidURL:                http.StatusBadRequest,
	CodeBlockedHost:               http.StatusForbidden,
	CodeBlockedRedirect:           http.StatusForbidden,
	CodeResponseTooLarge:          http.StatusRequestEntityTooLarge,
	CodeUnsupportedMediaType:      http.StatusUnsupportedMediaType,
	CodeFetchTimeout:              http.StatusGatewayTimeout,
	CodeFetchNetwork:              http.StatusBadGateway,
	CodeInvalidToken:              http.StatusUnauthorized,
	CodeUnauthorized:              http.StatusUnauthorized,
	CodeRateLimited:               http.StatusTooManyRequests,
	CodeServerBusy:                http.StatusServiceUnavailable,
	CodeQueueFull:                 http.StatusServiceUnavailable,
	CodeWorkerTimeout:             http.StatusGatewayTimeout,
	CodeWorkerBroken:              http.StatusServiceUnavailable,
	CodeParseError:                http.StatusBadRequest,
	CodeProtocolVersionUnsupported: http.StatusBadRequest,
	CodeSessionNotFound:           http.StatusNotFound,
	CodeInternal:                  http.StatusInternalServerError,
	CodeCanceled:                  http.StatusBadGateway,
}

var jsonrpcByCode = map[Code]int{
	CodeInvalidURL:                 JSONRPCInvalidRequest,
	CodeBlockedHost:                JSONRPCInvalidRequest,
	CodeBlockedRedirect:            JSONRPCInvalidRequest,
	CodeUnsupportedMediaType:       JSONRPCInvalidRequest,
	CodeInvalidToken:               JSONRPCInternalError,
	CodeUnauthorized:               JSONRPCInternalError,
	CodeRateLimited:                JSONRPCServerBusy,
	CodeServerBusy:                 JSONRPCServerBusy,
	CodeQueueFull:                  JSONRPCServerBusy,
	CodeParseError:                 JSONRPCParseError,
	CodeProtocolVersionUnsupported: JSONRPCInvalidRequest,
	CodeSessionNotFound:            JSONRPCInvalidRequest,
	CodeInternal:                   JSONRPCInternalError,
}

// New builds an *Error for the given code with a human-readable message.
func New(code Code, message string) *Error {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{
		Code:        code,
		Message:     message,
		HTTPStatus:  status,
		JSONRPCCode: jsonrpcByCode[code], // zero value is fine when absent
	}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Status returns the HTTP status code for err, defaulting to 500 for
// errors outside the taxonomy.
func Status(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.HTTPStatus
	}
	return http.StatusInternalServerError
}

// CodeOf returns the taxonomy code for err, or CodeInternal if err does
// not carry one.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether err's taxonomy code equals code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
