package network

import (
	"fmt"
)

const maxErrorBodyLength = 1024

// NetworkError is returned when a request could not be completed at the
// transport level (DNS, connect, TLS, timeout, reset), after any retries.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when a response arrived but could not be
// understood: a body that is not JSON, or JSON missing a required field.
type ProtocolError struct {
	Op   string
	URL  string
	Body string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected response from %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: unexpected response from %s: %v (body: %s)", e.Op, e.URL, e.Err, e.Body)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ServerRejectionError is returned when the server answered with a non-2xx
// status, or with a well-formed body that does not report success.
type ServerRejectionError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
}

func (e *ServerRejectionError) Error() string {
	return fmt.Sprintf("%s: rejected by %s: HTTP %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
}

// SessionError is returned when an upload session could not be negotiated on a line.
type SessionError struct {
	Line Line
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("negotiate %s upload session on %s: %v", e.Line.Backend, e.Line, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// StateError reports the upload state a file upload failed in.
type StateError struct {
	State State
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("upload failed while %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyLength {
		return string(body[:maxErrorBodyLength]) + "..."
	}
	return string(body)
}
