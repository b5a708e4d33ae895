package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
	"github.com/oshokin/safety-beacon/internal/logger"
)

// EventKind identifies a lifecycle observer event.
type EventKind string

const (
	// EventTriggered fires when the machine enters Active under a
	// provisional identity.
	EventTriggered EventKind = "triggered"
	// EventConfirmed fires when the alert service assigns the real alert ID.
	EventConfirmed EventKind = "confirmed"
	// EventTriggerFailed fires when the trigger call errors and the machine
	// falls back to Idle.
	EventTriggerFailed EventKind = "trigger_failed"
	// EventLocallyExpired fires when the active countdown elapses without a
	// remote end. It is a best-effort local mirror of server-side expiry,
	// never an authoritative cancellation.
	EventLocallyExpired EventKind = "locally_expired"
	// EventRemotelyEnded fires when the own alert is ended by the alert
	// service (user marked safe, timeout, or administrative end).
	EventRemotelyEnded EventKind = "remotely_ended"
	// EventCooldownOver fires when another trigger becomes allowed.
	EventCooldownOver EventKind = "cooldown_over"
)

// Event is one lifecycle notification for observers.
type Event struct {
	// Kind is the notification type.
	Kind EventKind
	// AlertID is the own alert the notification refers to.
	AlertID string
	// Reason is set for EventRemotelyEnded.
	Reason alert.EndReason
	// Err is set for EventTriggerFailed.
	Err error
}

// StartFunc performs the remote trigger call and returns the server-assigned
// alert ID. It runs in the background; the machine is already Active under a
// provisional identity while it executes.
type StartFunc func(ctx context.Context, location alert.DeviceLocation) (string, error)

// Config holds the machine's timer durations.
type Config struct {
	// Cooldown is the mandatory waiting period armed on trigger confirmation.
	Cooldown time.Duration
	// ActiveDuration is the countdown after which the own alert expires locally.
	ActiveDuration time.Duration
}

// eventBufferSize bounds the observer queue.
const eventBufferSize = 16

// provisionalPrefix marks locally generated alert identities awaiting
// server confirmation.
const provisionalPrefix = "local-"

// Machine owns this device's alert state. Exactly one instance exists per
// device; all methods are safe for concurrent use.
type Machine struct {
	// start performs the remote trigger call.
	start StartFunc
	// cooldown and activeDuration are the configured countdowns.
	cooldown       time.Duration
	activeDuration time.Duration

	// mu serializes every state transition.
	mu sync.Mutex
	// phase is the current state.
	phase alert.Phase
	// alertID identifies the own alert while active.
	alertID string
	// provisional reports whether alertID awaits server confirmation.
	provisional bool
	// origin is the location the alert was triggered from.
	origin alert.Coordinate
	// startedAt is the trigger instant.
	startedAt time.Time
	// cooldownUntil is when another trigger becomes allowed; it runs
	// independently of the active countdown.
	cooldownUntil time.Time
	// expiryTimer drives local auto-expiry of the active alert.
	expiryTimer *time.Timer
	// cooldownTimer flips Cooldown back to Idle.
	cooldownTimer *time.Timer
	// closed marks the machine as torn down; all timers are cancelled.
	closed bool
	// now is the clock, swapped in tests.
	now func() time.Time

	// events is the observer stream.
	events chan Event
}

// NewMachine creates an idle machine. Zero durations in cfg fall back to the
// conventional 60 s cooldown and 1200 s active countdown.
func NewMachine(cfg Config, start StartFunc) *Machine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}

	if cfg.ActiveDuration <= 0 {
		cfg.ActiveDuration = 1200 * time.Second
	}

	return &Machine{
		start:          start,
		cooldown:       cfg.Cooldown,
		activeDuration: cfg.ActiveDuration,
		phase:          alert.PhaseIdle,
		now:            time.Now,
		events:         make(chan Event, eventBufferSize),
	}
}

// Events returns the observer stream.
func (m *Machine) Events() <-chan Event {
	return m.events
}

// Trigger creates a new own alert from the provided location. It is valid
// only from Idle with no cooldown in effect and a usable location. The
// machine enters Active immediately under a provisional identity; the remote
// call runs in the background and either confirms the server-assigned ID or
// rolls the machine back to Idle.
func (m *Machine) Trigger(ctx context.Context, location alert.DeviceLocation) (string, error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("trigger: %w", alert.ErrPreconditionFailed)
	}

	if m.phase == alert.PhaseActive {
		m.mu.Unlock()
		return "", fmt.Errorf("alert already active: %w", alert.ErrPreconditionFailed)
	}

	if m.now().Before(m.cooldownUntil) {
		m.mu.Unlock()
		return "", fmt.Errorf("cooldown in effect: %w", alert.ErrPreconditionFailed)
	}

	if !location.Coordinate.IsUsable() {
		m.mu.Unlock()
		return "", fmt.Errorf("trigger: %w", alert.ErrLocationUnavailable)
	}

	provisionalID := provisionalPrefix + uuid.NewString()

	m.phase = alert.PhaseActive
	m.alertID = provisionalID
	m.provisional = true
	m.origin = location.Coordinate
	m.startedAt = m.now()
	m.armExpiryLocked(provisionalID)

	m.mu.Unlock()

	m.emit(Event{Kind: EventTriggered, AlertID: provisionalID})

	go m.confirm(ctx, provisionalID, location)

	return provisionalID, nil
}

// confirm runs the remote trigger call and reconciles its outcome.
func (m *Machine) confirm(ctx context.Context, provisionalID string, location alert.DeviceLocation) {
	serverID, err := m.start(ctx, location)
	if err != nil {
		m.failTrigger(ctx, provisionalID, err)
		return
	}

	m.adoptServerID(provisionalID, serverID)
}

// adoptServerID swaps the provisional identity for the server-assigned one
// and arms the cooldown countdown.
func (m *Machine) adoptServerID(provisionalID, serverID string) {
	m.mu.Lock()

	// The alert may have ended (remote end, expiry, teardown) while the
	// trigger call was in flight; the confirmation is then irrelevant.
	if m.closed || m.phase != alert.PhaseActive || m.alertID != provisionalID {
		m.mu.Unlock()
		return
	}

	m.alertID = serverID
	m.provisional = false
	m.armCooldownLocked()

	m.mu.Unlock()

	m.emit(Event{Kind: EventConfirmed, AlertID: serverID})
}

// failTrigger rolls the machine back to Idle after a failed trigger call.
// A failed trigger costs no cooldown.
func (m *Machine) failTrigger(ctx context.Context, provisionalID string, cause error) {
	m.mu.Lock()

	if m.closed || m.phase != alert.PhaseActive || m.alertID != provisionalID {
		m.mu.Unlock()
		return
	}

	m.stopActiveLocked()
	m.phase = alert.PhaseIdle
	m.alertID = ""

	m.mu.Unlock()

	logger.ErrorKV(ctx, "Trigger call failed, returning to idle", "error", cause)
	m.emit(Event{Kind: EventTriggerFailed, AlertID: provisionalID, Err: cause})
}

// OnRemoteEnded applies an authoritative end for the own alert. Non-matching
// IDs and repeated calls are no-ops; the transition from Active happens
// exactly once.
func (m *Machine) OnRemoteEnded(alertID string, reason alert.EndReason) bool {
	m.mu.Lock()

	if m.closed || m.phase != alert.PhaseActive || m.alertID != alertID {
		m.mu.Unlock()
		return false
	}

	m.stopActiveLocked()
	m.leaveActiveLocked()

	m.mu.Unlock()

	m.emit(Event{Kind: EventRemotelyEnded, AlertID: alertID, Reason: reason})

	return true
}

// expire applies local auto-expiry when the active countdown elapses.
func (m *Machine) expire(alertID string) {
	m.mu.Lock()

	if m.closed || m.phase != alert.PhaseActive || m.alertID != alertID {
		m.mu.Unlock()
		return
	}

	m.leaveActiveLocked()

	m.mu.Unlock()

	m.emit(Event{Kind: EventLocallyExpired, AlertID: alertID})
}

// Reconcile applies authoritative device status fetched by the sync poll.
// Remote state wins: a confirmed active alert unknown to the service is
// ended locally, a provisional identity is adopted, and the cooldown is
// extended to at least the remote remainder. It reports whether local state
// diverged.
func (m *Machine) Reconcile(activeAlertID string, cooldownRemaining time.Duration) bool {
	m.mu.Lock()

	diverged := false

	if remoteUntil := m.now().Add(cooldownRemaining); remoteUntil.After(m.cooldownUntil) {
		m.cooldownUntil = remoteUntil
		if m.phase == alert.PhaseIdle && cooldownRemaining > 0 {
			m.phase = alert.PhaseCooldown
			m.armCooldownTimerLocked()
			diverged = true
		}
	}

	switch {
	case m.phase == alert.PhaseActive && m.provisional && activeAlertID != "":
		// The trigger confirmation was lost; adopt the remote identity.
		provisionalID := m.alertID
		m.mu.Unlock()

		m.adoptServerID(provisionalID, activeAlertID)

		return true
	case m.phase == alert.PhaseActive && !m.provisional && activeAlertID == "":
		// The service no longer knows the alert: it ended while we were
		// offline and the alert_ended event was missed.
		endedID := m.alertID
		m.mu.Unlock()

		m.OnRemoteEnded(endedID, alert.EndReasonTimeout)

		return true
	default:
		m.mu.Unlock()
		return diverged
	}
}

// CanTrigger reports whether a trigger would pass its preconditions,
// ignoring location availability.
func (m *Machine) CanTrigger() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return !m.closed && m.phase != alert.PhaseActive && !m.now().Before(m.cooldownUntil)
}

// State returns a snapshot of the machine.
func (m *Machine) State() alert.MyAlertState {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.cooldownUntil.Sub(m.now())
	if remaining < 0 {
		remaining = 0
	}

	state := alert.MyAlertState{
		Phase:             m.phase,
		CooldownRemaining: remaining,
	}

	if m.phase == alert.PhaseActive {
		state.AlertID = m.alertID
		state.Provisional = m.provisional
		state.Origin = m.origin
		state.StartedAt = m.startedAt
		state.Duration = m.activeDuration
	}

	return state
}

// Close cancels all timers and rejects further triggers. It is idempotent.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true
	m.stopActiveLocked()

	if m.cooldownTimer != nil {
		m.cooldownTimer.Stop()
		m.cooldownTimer = nil
	}
}

// leaveActiveLocked moves from Active to Cooldown or Idle depending on
// whether the post-trigger waiting period is still running.
func (m *Machine) leaveActiveLocked() {
	m.alertID = ""
	m.provisional = false

	if m.now().Before(m.cooldownUntil) {
		m.phase = alert.PhaseCooldown
		m.armCooldownTimerLocked()
	} else {
		m.phase = alert.PhaseIdle
	}
}

// armExpiryLocked starts the active countdown for the given alert identity.
func (m *Machine) armExpiryLocked(alertID string) {
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
	}

	m.expiryTimer = time.AfterFunc(m.activeDuration, func() {
		m.expire(alertID)
	})
}

// armCooldownLocked starts the post-trigger waiting period.
func (m *Machine) armCooldownLocked() {
	m.cooldownUntil = m.now().Add(m.cooldown)
	m.armCooldownTimerLocked()
}

// armCooldownTimerLocked schedules the Cooldown→Idle flip.
func (m *Machine) armCooldownTimerLocked() {
	if m.cooldownTimer != nil {
		m.cooldownTimer.Stop()
	}

	m.cooldownTimer = time.AfterFunc(m.cooldownUntil.Sub(m.now()), m.cooldownOver)
}

// cooldownOver flips Cooldown back to Idle once the waiting period elapses.
// When the deadline was extended after the timer was armed (a reconcile
// adopting a longer remote remainder), the timer re-arms for the remainder.
func (m *Machine) cooldownOver() {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return
	}

	if m.now().Before(m.cooldownUntil) {
		m.armCooldownTimerLocked()
		m.mu.Unlock()

		return
	}

	changed := m.phase == alert.PhaseCooldown
	if changed {
		m.phase = alert.PhaseIdle
	}

	m.mu.Unlock()

	if changed {
		m.emit(Event{Kind: EventCooldownOver})
	}
}

// stopActiveLocked cancels the active countdown.
func (m *Machine) stopActiveLocked() {
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
		m.expiryTimer = nil
	}
}

// emit delivers an observer event without ever blocking a state transition.
func (m *Machine) emit(event Event) {
	select {
	case m.events <- event:
	default:
	}
}
