package api

import (
	"errors"
	"fmt"
)

// TransportError wraps a network-level failure (unreachable host, timeout,
// connection reset). The request never produced an HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RequestError is a non-2xx HTTP response, with the raw body attached for
// diagnostics.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// MalformedResponseError means the response parsed as JSON but failed
// top-level shape validation. Raw carries the payload so the caller can run
// the repair pipeline on it.
type MalformedResponseError struct {
	Reason string
	Raw    []byte
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s", e.Reason)
}

// IsMalformed reports whether err is (or wraps) a MalformedResponseError,
// returning it for access to the raw payload.
func IsMalformed(err error) (*MalformedResponseError, bool) {
	var m *MalformedResponseError
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}
