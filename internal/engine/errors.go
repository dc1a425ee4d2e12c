package engine

import "fmt"

// Error is a delivery or state error surfaced to the caller. Only the
// description is part of the contract; transport failures carry a sentinel
// 600 code in the text to distinguish them from real HTTP statuses.
type Error struct {
	Description string
}

func (e *Error) Error() string {
	return e.Description
}

var (
	// ErrNoEndpoints is returned when the endpoint list is empty.
	ErrNoEndpoints = &Error{Description: "No available endpoints to perform the request."}

	// ErrNotStarted is returned for operations attempted while stopped.
	ErrNotStarted = &Error{Description: "Pulse has not been started. Event discarded."}

	// ErrNoEventsQueued is returned by Flush when nothing is batched.
	ErrNoEventsQueued = &Error{Description: "There are no events in queue. Skipping request."}

	// ErrNoCertificateForPinning marks an endpoint that demands pinning
	// while no certificate is configured. The endpoint is skipped; the
	// error only surfaces when every endpoint fails.
	ErrNoCertificateForPinning = &Error{Description: "No available certificate for pinning purposes"}

	// ErrMissingProjectToken is returned when the elastic format is
	// selected without a project token.
	ErrMissingProjectToken = &Error{Description: "project token must not be null"}
)

// transportError wraps a transport-level failure (connection, TLS, timeout)
// with the sentinel 600 code.
func transportError(err error) *Error {
	return &Error{Description: fmt.Sprintf("%s (600)", err.Error())}
}

// statusError wraps an HTTP error response.
func statusError(code int, status string) *Error {
	return &Error{Description: fmt.Sprintf("%s (%d)", status, code)}
}
