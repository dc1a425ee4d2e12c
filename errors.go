package pulse

import "github.com/SebastienMelki/pulse/internal/engine"

// Sentinel errors surfaced through operation callbacks. Only the
// description text is part of the contract; compare with errors.Is or by
// message. Transport-level failures are reported as
// "<message> (600)" and rejected HTTP responses as
// "<status text> (<status code>)".
var (
	// ErrNoEndpoints: the provider returned an empty endpoint list.
	ErrNoEndpoints error = engine.ErrNoEndpoints

	// ErrNotStarted: an operation was attempted before Start.
	ErrNotStarted error = engine.ErrNotStarted

	// ErrNoEventsQueued: Flush was called with nothing batched.
	ErrNoEventsQueued error = engine.ErrNoEventsQueued

	// ErrNoCertificateForPinning: every endpoint demanded pinning while
	// no certificate was configured.
	ErrNoCertificateForPinning error = engine.ErrNoCertificateForPinning

	// ErrMissingProjectToken: the elastic format was selected without a
	// project token.
	ErrMissingProjectToken error = engine.ErrMissingProjectToken
)
