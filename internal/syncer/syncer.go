package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/safety-beacon/internal/api"
	"github.com/oshokin/safety-beacon/internal/domain/alert"
	"github.com/oshokin/safety-beacon/internal/logger"
)

// StatusAPI is the slice of the alert-service client the coordinator polls.
type StatusAPI interface {
	// DeviceStatus fetches the authoritative trigger state for a device.
	DeviceStatus(ctx context.Context, deviceID string) (*api.DeviceStatus, error)
	// NearbyAlerts fetches the active alerts within range of a location.
	NearbyAlerts(ctx context.Context, deviceID string, location alert.Coordinate) ([]*alert.Alert, error)
	// AlertDetail fetches one alert by ID.
	AlertDetail(ctx context.Context, alertID string) (*alert.Alert, error)
}

// Reconciler is the lifecycle surface the coordinator corrects on each tick.
type Reconciler interface {
	// Reconcile applies the server's view of the own-alert state.
	Reconcile(activeAlertID string, cooldownRemaining time.Duration) bool
	// State reports the current own-alert snapshot.
	State() alert.MyAlertState
}

// Sink is the inbox surface the coordinator feeds admitted and ended alerts into.
type Sink interface {
	// OnRemoteAlert admits or refreshes a remote alert.
	OnRemoteAlert(incoming *alert.Alert, ownActive bool) bool
	// OnAlertEnded removes an alert everywhere.
	OnAlertEnded(alertID string)
	// TrackedIDs lists the alerts currently mirrored.
	TrackedIDs() []string
}

// Rooms is the realtime-subscription surface kept in step with the inbox.
type Rooms interface {
	// SubscribeToAlert joins an alert's update room.
	SubscribeToAlert(alertID string) error
	// UnsubscribeFromAlert leaves an alert's update room.
	UnsubscribeFromAlert(alertID string) error
}

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 10 * time.Second

// Coordinator periodically pulls authoritative state from the alert service
// and pushes it through the lifecycle machine and the inbox.
type Coordinator struct {
	client   StatusAPI
	machine  Reconciler
	box      Sink
	rooms    Rooms
	deviceID string
	location func() alert.Coordinate
	interval time.Duration
}

// New constructs a coordinator. The location callback is consulted on every
// tick so the nearby query follows the device if it moves.
func New(
	client StatusAPI,
	machine Reconciler,
	box Sink,
	rooms Rooms,
	deviceID string,
	location func() alert.Coordinate,
	interval time.Duration,
) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Coordinator{
		client:   client,
		machine:  machine,
		box:      box,
		rooms:    rooms,
		deviceID: deviceID,
		location: location,
		interval: interval,
	}
}

// Run polls until the context is canceled. An initial tick fires immediately
// so a fresh start does not wait a full interval for its first correction.
func (s *Coordinator) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "syncer")

	s.poll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll runs one tick and logs its outcome. Stale data is already corrected
// and logged inside Tick, so it does not count as a poll failure.
func (s *Coordinator) poll(ctx context.Context) {
	if err := s.Tick(ctx); err != nil && !errors.Is(err, alert.ErrStaleData) {
		logger.ErrorKV(ctx, "Sync poll failed", "error", err)
	}
}

// Tick runs one reconciliation pass. Safe to call from outside the Run loop,
// e.g. right after the realtime channel reconnects. A diverged own-alert
// state is corrected to the server's view and reported as ErrStaleData after
// the rest of the pass completes.
func (s *Coordinator) Tick(ctx context.Context) error {
	status, err := s.client.DeviceStatus(ctx, s.deviceID)
	if err != nil {
		return err
	}

	var staleErr error

	if s.machine.Reconcile(status.ActiveAlertID, status.CooldownRemaining()) {
		logger.WarnKV(ctx, "Local alert state diverged from server, remote view applied",
			"active_alert_id", status.ActiveAlertID)

		staleErr = fmt.Errorf("%w: server reports active alert %q",
			alert.ErrStaleData, status.ActiveAlertID)
	}

	state := s.machine.State()

	nearby, err := s.client.NearbyAlerts(ctx, s.deviceID, s.location())
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(nearby))

	for _, incoming := range nearby {
		if incoming == nil || incoming.ID == "" || incoming.ID == state.AlertID {
			continue
		}

		seen[incoming.ID] = struct{}{}

		s.box.OnRemoteAlert(incoming, state.Phase == alert.PhaseActive)

		// Room joins are idempotent, so every tracked alert can be re-joined
		// on each pass without bookkeeping.
		if err = s.rooms.SubscribeToAlert(incoming.ID); err != nil {
			logger.WarnKV(ctx, "Subscribe to alert room failed", "alert_id", incoming.ID, "error", err)
		}
	}

	s.sweepEnded(ctx, seen)

	return staleErr
}

// sweepEnded probes tracked alerts that the nearby query no longer returns.
// An alert can drop out of the list because it ended or because the device
// moved out of range; only a confirmed end removes it.
func (s *Coordinator) sweepEnded(ctx context.Context, seen map[string]struct{}) {
	for _, id := range s.box.TrackedIDs() {
		if _, ok := seen[id]; ok {
			continue
		}

		detail, err := s.client.AlertDetail(ctx, id)
		if err != nil {
			if !errors.Is(err, api.ErrNotFound) {
				logger.WarnKV(ctx, "Alert detail fetch failed", "alert_id", id, "error", err)
				continue
			}
		} else if detail.Status != alert.StatusEnded {
			continue
		}

		s.box.OnAlertEnded(id)

		if err = s.rooms.UnsubscribeFromAlert(id); err != nil {
			logger.WarnKV(ctx, "Unsubscribe from alert room failed", "alert_id", id, "error", err)
		}
	}
}
