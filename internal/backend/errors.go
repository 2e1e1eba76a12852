// ABOUTME: Error types returned by backend operations
// ABOUTME: Separates transport, HTTP status, and payload-level failures

package backend

import (
	"errors"
	"fmt"
)

// TransportError reports a request that never produced a response
// (DNS, connection, timeout, canceled context).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx response. Message holds the JSON "error"
// field of the body when the backend sent one.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// APIError reports a 2xx response whose payload carried "success": false.
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: request was not successful", e.Op)
}

// BackendMessage returns the message the backend attached to a failed
// response, or "" when err carries none.
func BackendMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Message
	}
	return ""
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// UserMessage returns inline display text for err: the backend's own message
// when it sent one, otherwise fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if msg := BackendMessage(err); msg != "" {
		return msg
	}
	return fallback
}
