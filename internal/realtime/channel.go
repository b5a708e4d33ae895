package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/safety-beacon/internal/logger"
)

const (
	// DefaultInitialBackoff is the delay before the first reconnect attempt.
	DefaultInitialBackoff = 500 * time.Millisecond
	// DefaultMaxBackoff caps the delay between reconnect attempts.
	DefaultMaxBackoff = 2 * time.Second
	// DefaultMaxAttempts is the number of failed reconnect attempts before a
	// persistent-offline event is surfaced. Retrying continues at the cap
	// afterwards; only the notification is one-shot per outage.
	DefaultMaxAttempts = 10

	// eventBufferSize bounds the delivery queue. The periodic sync poll
	// recovers anything dropped under backpressure.
	eventBufferSize = 64

	// deviceRoomPrefix scopes rooms carrying device-targeted pushes.
	deviceRoomPrefix = "device:"
	// alertRoomPrefix scopes rooms carrying per-alert fan-out.
	alertRoomPrefix = "alert:"
)

// errChannelClosed is returned when operating on a closed channel.
var errChannelClosed = errors.New("realtime channel is closed")

// session is one live connection to the event broker.
type session interface {
	// Subscribe joins the provided rooms on this connection.
	Subscribe(ctx context.Context, rooms ...string) error
	// Unsubscribe leaves the provided rooms.
	Unsubscribe(ctx context.Context, rooms ...string) error
	// Receive blocks until the next message or a connection error.
	Receive(ctx context.Context) (room string, payload []byte, err error)
	// Close releases the connection.
	Close() error
}

// transport establishes broker connections; swapped out in tests.
type transport interface {
	Connect(ctx context.Context) (session, error)
}

// Channel is a reconnecting room pub/sub client for alert events.
// IsConnected is advisory only: delivery is at-least-once and may still miss
// messages around reconnects, which the periodic sync poll corrects.
type Channel struct {
	// transport creates broker sessions.
	transport transport

	// initialBackoff, maxBackoff, and maxAttempts configure reconnect pacing.
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxAttempts    int

	// mu protects the identity, the room set, and the live session.
	mu sync.Mutex
	// deviceID is the identity this channel is connected as.
	deviceID string
	// rooms is the set of alert rooms to hold across reconnects.
	rooms map[string]struct{}
	// sess is the live session, nil while disconnected.
	sess session
	// runCtx is the context governing the current connection lifetime.
	runCtx context.Context //nolint:containedctx // Owned by the run loop, used by room changes.
	// cancel stops the run loop.
	cancel context.CancelFunc
	// done is closed when the run loop exits.
	done chan struct{}
	// closed marks the channel as permanently torn down.
	closed bool

	// connected reports whether a session is currently live.
	connected atomic.Bool

	// events is the typed delivery stream handed to the consumer.
	events chan Event
}

// NewChannel creates a channel speaking to a Redis pub/sub broker.
func NewChannel(opts RedisOptions) *Channel {
	return newChannel(&redisTransport{opts: opts})
}

// newChannel wires a channel over an arbitrary transport.
func newChannel(tr transport) *Channel {
	return &Channel{
		transport:      tr,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		maxAttempts:    DefaultMaxAttempts,
		rooms:          make(map[string]struct{}),
		events:         make(chan Event, eventBufferSize),
	}
}

// Connect starts the channel for the provided device identity and joins the
// device-scoped room. Calling it again with the same identity while running
// is a no-op; a different identity tears down the previous connection first.
// The provided context bounds the connection lifetime.
func (c *Channel) Connect(ctx context.Context, deviceID string) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return errChannelClosed
	}

	if c.cancel != nil && c.deviceID == deviceID {
		c.mu.Unlock()
		return nil
	}

	// Identity change: stop the previous run loop before rewiring.
	if c.cancel != nil {
		cancel, done := c.cancel, c.done
		c.cancel = nil
		c.mu.Unlock()

		cancel()
		<-done

		c.mu.Lock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.deviceID = deviceID
	c.runCtx = runCtx
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(runCtx, done)

	return nil
}

// SubscribeToAlert joins the per-alert room and keeps it in the resubscribe
// set held across reconnects.
func (c *Channel) SubscribeToAlert(alertID string) error {
	return c.changeRooms(alertRoomPrefix+alertID, true)
}

// UnsubscribeFromAlert leaves the per-alert room and drops it from the
// resubscribe set.
func (c *Channel) UnsubscribeFromAlert(alertID string) error {
	return c.changeRooms(alertRoomPrefix+alertID, false)
}

// changeRooms updates the tracked room set and mirrors the change onto the
// live session when one exists.
func (c *Channel) changeRooms(room string, join bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errChannelClosed
	}

	if join {
		c.rooms[room] = struct{}{}
	} else {
		delete(c.rooms, room)
	}

	if c.sess == nil {
		return nil
	}

	if join {
		return c.sess.Subscribe(c.runCtx, room)
	}

	return c.sess.Unsubscribe(c.runCtx, room)
}

// IsConnected reports whether a broker session is currently live.
func (c *Channel) IsConnected() bool {
	return c.connected.Load()
}

// Events returns the typed event stream.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close tears down the channel, leaves all rooms, and closes the event stream.
// It is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return
	}

	c.closed = true
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	close(c.events)
}

// run owns the connect / subscribe / receive cycle until ctx is canceled.
func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempt := 0

	for ctx.Err() == nil {
		sess, err := c.transport.Connect(ctx)
		if err != nil {
			logger.WarnKV(ctx, "Broker connect failed", "error", err)

			if !c.waitBackoff(ctx, &attempt) {
				return
			}

			continue
		}

		if err = c.joinAll(ctx, sess); err != nil {
			logger.WarnKV(ctx, "Room join failed", "error", err)
			_ = sess.Close()

			if !c.waitBackoff(ctx, &attempt) {
				return
			}

			continue
		}

		attempt = 0

		c.attach(sess)
		c.emit(ctx, Event{Type: TypeConnected})

		c.receiveLoop(ctx, sess)

		c.detach()
		_ = sess.Close()
	}
}

// joinAll subscribes the session to the device room and every tracked alert room.
func (c *Channel) joinAll(ctx context.Context, sess session) error {
	c.mu.Lock()

	rooms := make([]string, 0, len(c.rooms)+1)
	rooms = append(rooms, deviceRoomPrefix+c.deviceID)

	for room := range c.rooms {
		rooms = append(rooms, room)
	}

	c.mu.Unlock()

	return sess.Subscribe(ctx, rooms...)
}

// receiveLoop pumps messages from the session until it fails.
func (c *Channel) receiveLoop(ctx context.Context, sess session) {
	for {
		room, payload, err := sess.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.WarnKV(ctx, "Broker receive failed, reconnecting", "error", err)
			}

			return
		}

		event, err := Decode(payload)
		if err != nil {
			logger.WarnKV(ctx, "Dropping malformed event", "room", room, "error", err)
			continue
		}

		c.emit(ctx, event)
	}
}

// attach publishes the live session for room changes and flips the indicator.
func (c *Channel) attach(sess session) {
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()

	c.connected.Store(true)
}

// detach clears the live session and flips the indicator.
func (c *Channel) detach() {
	c.mu.Lock()
	c.sess = nil
	c.mu.Unlock()

	c.connected.Store(false)
}

// waitBackoff sleeps for the attempt's backoff delay. It surfaces the
// persistent-offline event exactly once per outage, after the attempt budget
// is exhausted. Returns false when ctx is canceled.
func (c *Channel) waitBackoff(ctx context.Context, attempt *int) bool {
	delay := c.backoffDelay(*attempt)

	*attempt++
	if *attempt == c.maxAttempts {
		c.emit(ctx, Event{Type: TypeOffline})
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// backoffDelay returns the delay before reconnect attempt n, doubling from
// the initial value up to the cap.
func (c *Channel) backoffDelay(attempt int) time.Duration {
	delay := c.initialBackoff

	for i := 0; i < attempt && delay < c.maxBackoff; i++ {
		delay *= 2
	}

	if delay > c.maxBackoff {
		delay = c.maxBackoff
	}

	return delay
}

// emit delivers an event without ever blocking the receive loop.
func (c *Channel) emit(ctx context.Context, event Event) {
	select {
	case c.events <- event:
	default:
		logger.WarnKV(ctx, "Event queue full, dropping event",
			"type", event.Type, "alert_id", event.AlertID)
	}
}
