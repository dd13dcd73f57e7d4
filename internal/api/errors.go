package api

import (
	"fmt"
)

// TransportError means the server answered with a non-2xx status.
type TransportError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       []byte

	// Message is the "error" field of the backend's error envelope, when the
	// body carried one.
	Message string
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api.%s: %s %s: status %d: %s", e.Op, e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api.%s: %s %s: status %d", e.Op, e.Method, e.URL, e.StatusCode)
}

// NetworkError means the request never produced a response: connection
// refused, timeout, cancelled context, or a body that could not be read.
type NetworkError struct {
	Op     string
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("api.%s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
