package notify

import (
	"sync"
	"time"
)

// RequestKind distinguishes burst start and stop requests.
type RequestKind string

const (
	// RequestStart asks the platform layer to begin the burst sequence.
	RequestStart RequestKind = "start"
	// RequestStop asks the platform layer to silence any running burst.
	RequestStop RequestKind = "stop"
)

// Request is one instruction for the platform layer realizing bursts.
type Request struct {
	// Kind says whether to start or stop.
	Kind RequestKind
	// At is when the dispatcher issued the request.
	At time.Time
}

// DefaultBurstCeiling bounds how long a burst may run before the dispatcher
// stops it regardless of the platform layer's own completion.
const DefaultBurstCeiling = 4 * time.Second

// requestBufferSize bounds the request queue to the platform layer.
const requestBufferSize = 8

// Dispatcher enforces the at-most-one-concurrent-burst discipline.
// All methods are safe for concurrent use and never block.
type Dispatcher struct {
	// ceiling is the burst self-termination bound.
	ceiling time.Duration

	// mu protects the in-flight flag and the ceiling timer, and serializes
	// request sends against closing the stream.
	mu sync.Mutex
	// active reports whether a burst is in flight.
	active bool
	// ceilingTimer self-terminates the running burst.
	ceilingTimer *time.Timer
	// closed marks the dispatcher as torn down.
	closed bool
	// now is the clock, swapped in tests.
	now func() time.Time

	// requests is the stream consumed by the platform layer.
	requests chan Request
}

// NewDispatcher creates a dispatcher with the default burst ceiling.
func NewDispatcher() *Dispatcher {
	return newDispatcher(DefaultBurstCeiling)
}

// newDispatcher creates a dispatcher with the provided ceiling.
func newDispatcher(ceiling time.Duration) *Dispatcher {
	return &Dispatcher{
		ceiling:  ceiling,
		now:      time.Now,
		requests: make(chan Request, requestBufferSize),
	}
}

// Requests returns the stream of burst instructions for the platform layer.
func (d *Dispatcher) Requests() <-chan Request {
	return d.requests
}

// FireAlertBurst schedules a burst and reports whether one was started.
// While a burst is in flight, further calls are dropped.
func (d *Dispatcher) FireAlertBurst() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.active {
		return false
	}

	d.active = true
	d.ceilingTimer = time.AfterFunc(d.ceiling, d.ceilingReached)

	d.sendLocked(RequestStart)

	return true
}

// Stop cancels any in-flight burst immediately. It is idempotent.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || !d.active {
		return
	}

	d.clearLocked()
	d.sendLocked(RequestStop)
}

// IsActive reports whether a burst is currently in flight.
func (d *Dispatcher) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.active
}

// Close stops any burst and rejects further dispatches. It is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if d.active {
		d.sendLocked(RequestStop)
	}

	d.clearLocked()
	d.closed = true

	close(d.requests)
}

// ceilingReached self-terminates the burst after the fixed ceiling.
func (d *Dispatcher) ceilingReached() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || !d.active {
		return
	}

	d.clearLocked()
	d.sendLocked(RequestStop)
}

// clearLocked resets the in-flight state and cancels the ceiling timer.
func (d *Dispatcher) clearLocked() {
	d.active = false

	if d.ceilingTimer != nil {
		d.ceilingTimer.Stop()
		d.ceilingTimer = nil
	}
}

// sendLocked delivers a request without ever blocking the caller. It must be
// called with mu held: the channel is only ever closed under the same lock,
// so a send can never hit a closed channel.
func (d *Dispatcher) sendLocked(kind RequestKind) {
	select {
	case d.requests <- Request{Kind: kind, At: d.now()}:
	default:
	}
}
