package beacon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/safety-beacon/internal/config"
	"github.com/oshokin/safety-beacon/internal/domain/alert"
	"github.com/oshokin/safety-beacon/internal/inbox"
	"github.com/oshokin/safety-beacon/internal/lifecycle"
	"github.com/oshokin/safety-beacon/internal/logger"
	"github.com/oshokin/safety-beacon/internal/notify"
	"github.com/oshokin/safety-beacon/internal/realtime"
	"github.com/oshokin/safety-beacon/internal/syncer"
)

// AlertAPI is the slice of the REST client the service uses.
type AlertAPI interface {
	syncer.StatusAPI

	// UpdateLocation pushes a fresh device location to the alert service.
	UpdateLocation(ctx context.Context, deviceID string, location alert.DeviceLocation) error
	// TriggerAlert creates an alert and returns its server-assigned ID.
	TriggerAlert(ctx context.Context, deviceID string, location alert.DeviceLocation) (string, error)
	// EndAlert terminates an alert originated by this device.
	EndAlert(ctx context.Context, deviceID, alertID string) error
	// RespondToAlert marks this device as a responder to the given alert.
	RespondToAlert(ctx context.Context, deviceID, alertID string, location alert.DeviceLocation) error
	// NearbyUserCount fetches how many users are within the radius of a point.
	NearbyUserCount(ctx context.Context, location alert.Coordinate, radiusMeters float64) (int, error)
}

// EventChannel is the realtime surface the service consumes.
type EventChannel interface {
	// SubscribeToAlert joins an alert's update room.
	SubscribeToAlert(alertID string) error
	// UnsubscribeFromAlert leaves an alert's update room.
	UnsubscribeFromAlert(alertID string) error
	// Events returns the typed event stream.
	Events() <-chan realtime.Event
}

// Service is the assembled alert client core. It owns the lifecycle machine,
// the inbox, and the notification dispatcher, and keeps them consistent with
// the realtime stream and the reconciliation poll. All exported methods are
// safe for concurrent use.
type Service struct {
	// client is the alert-service REST surface.
	client AlertAPI
	// channel delivers realtime events and manages room membership.
	channel EventChannel
	// provider produces location fixes.
	provider LocationProvider
	// machine owns the own-alert state.
	machine *lifecycle.Machine
	// box holds incoming alerts from other devices.
	box *inbox.Inbox
	// dispatcher drives the haptic/audio burst for surfaced alerts.
	dispatcher *notify.Dispatcher
	// sync is the periodic reconciliation poll.
	sync *syncer.Coordinator

	// deviceID is this device's registered identity.
	deviceID string
	// locationInterval is the period between location pushes.
	locationInterval time.Duration

	// mu guards burstAlertID.
	mu sync.Mutex
	// burstAlertID is the alert the current burst was fired for; it prevents
	// refresh events from re-buzzing an alert the user already silenced.
	burstAlertID string
}

// NewService assembles the core from its transports. The channel must already
// be connected (or connecting) for the given device.
func NewService(cfg *config.Config, deviceID string, client AlertAPI, channel EventChannel) *Service {
	provider := NewFixedProvider(alert.Coordinate{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
	})

	machine := lifecycle.NewMachine(
		lifecycle.Config{
			Cooldown:       cfg.Cooldown,
			ActiveDuration: cfg.ActiveDuration,
		},
		func(ctx context.Context, location alert.DeviceLocation) (string, error) {
			return client.TriggerAlert(ctx, deviceID, location)
		},
	)

	box := inbox.New()

	s := &Service{
		client:           client,
		channel:          channel,
		provider:         provider,
		machine:          machine,
		box:              box,
		dispatcher:       notify.NewDispatcher(),
		deviceID:         deviceID,
		locationInterval: cfg.LocationInterval,
	}

	s.sync = syncer.New(client, machine, box, channel, deviceID, s.Location, cfg.SyncInterval)

	return s
}

// Run drives the background loops until the context is canceled, then tears
// the core down.
func (s *Service) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "beacon")

	var wg sync.WaitGroup

	wg.Add(3)

	go func() {
		defer wg.Done()
		s.sync.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		s.consumeRealtime(ctx)
	}()

	go func() {
		defer wg.Done()
		s.publishLocation(ctx)
	}()

	s.consumeLifecycle(ctx)
	wg.Wait()

	s.machine.Close()
	s.dispatcher.Close()
}

// Trigger raises this device's own alert from the current location.
func (s *Service) Trigger(ctx context.Context) (string, error) {
	return s.machine.Trigger(ctx, s.provider.Current())
}

// EndOwnAlert marks the user safe and terminates the own alert. The remote
// end is authoritative; the local machine transitions only after the service
// accepts the call.
func (s *Service) EndOwnAlert(ctx context.Context) error {
	state := s.machine.State()
	if state.Phase != alert.PhaseActive {
		return fmt.Errorf("%w: no active alert to end", alert.ErrPreconditionFailed)
	}

	if state.Provisional {
		return fmt.Errorf("%w: alert is still awaiting server confirmation", alert.ErrPreconditionFailed)
	}

	if err := s.client.EndAlert(ctx, s.deviceID, state.AlertID); err != nil {
		return fmt.Errorf("end alert: %w", err)
	}

	s.machine.OnRemoteEnded(state.AlertID, alert.EndReasonUserSafe)

	return nil
}

// Respond marks this device as a responder to the surfaced alert and silences
// the burst. The alert stays surfaced so the user keeps distance and bearing
// while moving toward it.
func (s *Service) Respond(ctx context.Context) error {
	surfaced := s.box.Surfaced(s.Location())
	if surfaced == nil {
		return fmt.Errorf("%w: no alert is surfaced", alert.ErrPreconditionFailed)
	}

	if err := s.client.RespondToAlert(ctx, s.deviceID, surfaced.AlertID, s.provider.Current()); err != nil {
		return fmt.Errorf("respond to alert: %w", err)
	}

	s.dispatcher.Stop()

	return nil
}

// Dismiss clears the surfaced alert from the user's attention and silences
// the burst. The alert stays tracked and may resurface on a later admission,
// but it will not buzz again until it ends and a fresh alert takes the slot.
func (s *Service) Dismiss() {
	surfaced := s.box.Surfaced(s.Location())
	if surfaced == nil {
		return
	}

	s.box.Dismiss(surfaced.AlertID)
	s.dispatcher.Stop()
}

// State reports the own-alert snapshot.
func (s *Service) State() alert.MyAlertState {
	return s.machine.State()
}

// Surfaced reports the incoming alert currently surfaced to the user, or nil.
func (s *Service) Surfaced() *alert.IncomingAlertRef {
	return s.box.Surfaced(s.Location())
}

// NearbyUsers reports how many users are within the given radius of this
// device, for the pre-trigger reach estimate shown to the user.
func (s *Service) NearbyUsers(ctx context.Context, radiusMeters float64) (int, error) {
	return s.client.NearbyUserCount(ctx, s.Location(), radiusMeters)
}

// BurstRequests returns the notification requests for the embedding shell.
func (s *Service) BurstRequests() <-chan notify.Request {
	return s.dispatcher.Requests()
}

// Location returns the device's current coordinate.
func (s *Service) Location() alert.Coordinate {
	return s.provider.Current().Coordinate
}

// consumeRealtime applies realtime events until the context is canceled or
// the channel closes.
func (s *Service) consumeRealtime(ctx context.Context) {
	ctx = logger.WithName(ctx, "realtime-consumer")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.channel.Events():
			if !ok {
				return
			}

			s.handleEvent(ctx, event)
		}
	}
}

// handleEvent routes one realtime event into the matching component.
func (s *Service) handleEvent(ctx context.Context, event realtime.Event) {
	switch event.Type {
	case realtime.TypeConnected:
		logger.Info(ctx, "Realtime channel connected, reconciling")

		// A reconnect may have missed events; pull the authoritative state
		// instead of waiting for the next scheduled poll. Stale local state
		// is already corrected and logged inside the tick.
		if err := s.sync.Tick(ctx); err != nil && !errors.Is(err, alert.ErrStaleData) {
			logger.WarnKV(ctx, "Post-reconnect sync failed", "error", err)
		}
	case realtime.TypeOffline:
		logger.Warn(ctx, "Realtime channel offline, relying on sync poll")
	case realtime.TypeNewAlert:
		s.admitRemote(ctx, event.Alert())
	case realtime.TypeAlertReceived:
		// The trigger call's own response already confirmed the alert; the
		// event is a mirror for devices that reconnected mid-trigger.
		logger.DebugKV(ctx, "Alert receipt confirmed", "alert_id", event.AlertID)
	case realtime.TypeAlertLocationUpdated:
		s.box.OnLocationUpdated(event.AlertID, event.Origin())
	case realtime.TypeAlertEnded:
		s.onAlertEnded(ctx, event.AlertID, event.Reason)
	case realtime.TypeRadiusExpanded:
		s.box.OnRadiusExpanded(event.AlertID, event.RadiusMeters)
	case realtime.TypeResponderAdded:
		s.box.OnResponderAdded(event.AlertID, event.ResponderCount)
	default:
		logger.WarnKV(ctx, "Unhandled realtime event", "type", string(event.Type))
	}
}

// admitRemote feeds an incoming alert into the inbox and fires the burst when
// it takes the surfaced slot for the first time.
func (s *Service) admitRemote(ctx context.Context, incoming *alert.Alert) {
	state := s.machine.State()
	if incoming == nil || incoming.ID == "" || incoming.ID == state.AlertID {
		return
	}

	surfaced := s.box.OnRemoteAlert(incoming, state.Phase == alert.PhaseActive)

	if err := s.channel.SubscribeToAlert(incoming.ID); err != nil {
		logger.WarnKV(ctx, "Subscribe to alert room failed", "alert_id", incoming.ID, "error", err)
	}

	if surfaced && s.armBurst(incoming.ID) {
		logger.InfoKV(ctx, "Incoming alert surfaced", "alert_id", incoming.ID)
		s.dispatcher.FireAlertBurst()
	}
}

// onAlertEnded applies a remote termination to whichever side owns the alert.
func (s *Service) onAlertEnded(ctx context.Context, alertID string, reason alert.EndReason) {
	if s.machine.OnRemoteEnded(alertID, reason) {
		logger.InfoKV(ctx, "Own alert ended remotely", "alert_id", alertID, "reason", string(reason))
	}

	if surfaced := s.box.Surfaced(s.Location()); surfaced != nil && surfaced.AlertID == alertID {
		s.dispatcher.Stop()
	}

	s.box.OnAlertEnded(alertID)
	s.clearBurst(alertID)

	if err := s.channel.UnsubscribeFromAlert(alertID); err != nil {
		logger.WarnKV(ctx, "Unsubscribe from alert room failed", "alert_id", alertID, "error", err)
	}
}

// consumeLifecycle logs lifecycle transitions and keeps the own-alert room
// membership in step with the machine.
func (s *Service) consumeLifecycle(ctx context.Context) {
	ctx = logger.WithName(ctx, "lifecycle-consumer")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.machine.Events():
			if !ok {
				return
			}

			switch event.Kind {
			case lifecycle.EventTriggered:
				logger.InfoKV(ctx, "Alert triggered", "alert_id", event.AlertID)
			case lifecycle.EventConfirmed:
				logger.InfoKV(ctx, "Alert confirmed by server", "alert_id", event.AlertID)

				if err := s.channel.SubscribeToAlert(event.AlertID); err != nil {
					logger.WarnKV(ctx, "Subscribe to own alert room failed",
						"alert_id", event.AlertID, "error", err)
				}
			case lifecycle.EventTriggerFailed:
				logger.ErrorKV(ctx, "Trigger failed", "alert_id", event.AlertID, "error", event.Err)
			case lifecycle.EventLocallyExpired:
				logger.WarnKV(ctx, "Own alert expired locally, awaiting server confirmation",
					"alert_id", event.AlertID)
			case lifecycle.EventRemotelyEnded:
				logger.InfoKV(ctx, "Own alert ended",
					"alert_id", event.AlertID, "reason", string(event.Reason))

				if err := s.channel.UnsubscribeFromAlert(event.AlertID); err != nil {
					logger.WarnKV(ctx, "Unsubscribe from own alert room failed",
						"alert_id", event.AlertID, "error", err)
				}
			case lifecycle.EventCooldownOver:
				logger.Info(ctx, "Cooldown over, trigger available")
			}
		}
	}
}

// publishLocation pushes the device location immediately and then on the
// configured interval. Failures are logged and retried on the next tick.
func (s *Service) publishLocation(ctx context.Context) {
	ctx = logger.WithName(ctx, "location-publisher")

	push := func() {
		if err := s.client.UpdateLocation(ctx, s.deviceID, s.provider.Current()); err != nil {
			logger.WarnKV(ctx, "Location update failed", "error", err)
		}
	}

	push()

	interval := s.locationInterval
	if interval <= 0 {
		interval = config.DefaultLocationInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			push()
		}
	}
}

// armBurst reports whether a burst may fire for the alert, at most once per
// surfacing.
func (s *Service) armBurst(alertID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.burstAlertID == alertID {
		return false
	}

	s.burstAlertID = alertID

	return true
}

// clearBurst forgets the burst bookkeeping for an alert so a later
// resurfacing may buzz again.
func (s *Service) clearBurst(alertID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.burstAlertID == alertID {
		s.burstAlertID = ""
	}
}
