package alert

import "errors"

var (
	// ErrPreconditionFailed is returned when a trigger is attempted while a
	// cooldown is in effect or an own alert is already active. It is reported
	// to the caller and never retried.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrNetworkUnavailable marks transient connectivity failures. The
	// realtime channel reacts with reconnect and backoff; one-shot calls are
	// retried at the caller's discretion.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrLocationUnavailable is returned when an operation requires a known
	// device location and none is available.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrStaleData marks a divergence between local and remote state detected
	// during reconciliation. Remote state wins and is applied idempotently.
	ErrStaleData = errors.New("stale local data")
)
