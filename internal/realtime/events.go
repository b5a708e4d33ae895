package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
)

// Type identifies the kind of a realtime event.
type Type string

const (
	// TypeNewAlert announces an alert newly visible to this device.
	TypeNewAlert Type = "new_alert"
	// TypeAlertReceived confirms the alert service accepted this device's trigger.
	TypeAlertReceived Type = "alert_received"
	// TypeAlertLocationUpdated carries a fresh origin location for an alert.
	TypeAlertLocationUpdated Type = "alert_location_updated"
	// TypeAlertEnded announces that an alert was terminated.
	TypeAlertEnded Type = "alert_ended"
	// TypeRadiusExpanded carries a grown notification radius for an alert.
	TypeRadiusExpanded Type = "radius_expanded"
	// TypeResponderAdded carries an updated responder count for an alert.
	TypeResponderAdded Type = "responder_added"

	// TypeConnected is synthesized locally whenever the channel (re)connects.
	// It never appears on the wire.
	TypeConnected Type = "connected"
	// TypeOffline is synthesized locally after the reconnect attempt budget is
	// exhausted. It never appears on the wire.
	TypeOffline Type = "offline"
)

// Event is the decoded form of one realtime message. Only the fields relevant
// to the event's Type are populated.
type Event struct {
	// Type is the event kind.
	Type Type `json:"type"`
	// AlertID identifies the alert the event refers to.
	AlertID string `json:"alert_id,omitempty"`
	// Latitude and Longitude carry the alert origin for location-bearing events.
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	// RadiusMeters is the current notification radius.
	RadiusMeters float64 `json:"radius_meters,omitempty"`
	// ResponderCount is the number of responders so far.
	ResponderCount int `json:"responder_count,omitempty"`
	// Reason explains an alert_ended event.
	Reason alert.EndReason `json:"reason,omitempty"`
	// CreatedAt is the server-side creation time for new_alert events.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

var (
	// errEmptyPayload is returned when a message carries no body.
	errEmptyPayload = errors.New("empty event payload")
	// errMissingAlertID is returned when a wire event lacks the alert identity.
	errMissingAlertID = errors.New("event is missing alert_id")
)

// wireTypes enumerates the event kinds the alert service actually publishes.
//
//nolint:gochecknoglobals // Static lookup table.
var wireTypes = map[Type]struct{}{
	TypeNewAlert:             {},
	TypeAlertReceived:        {},
	TypeAlertLocationUpdated: {},
	TypeAlertEnded:           {},
	TypeRadiusExpanded:       {},
	TypeResponderAdded:       {},
}

// Decode parses a raw message into an Event, rejecting unknown or malformed
// payloads so one bad publication cannot poison the stream.
func Decode(payload []byte) (Event, error) {
	if len(payload) == 0 {
		return Event{}, errEmptyPayload
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	if _, ok := wireTypes[event.Type]; !ok {
		return Event{}, fmt.Errorf("unknown event type %q", event.Type)
	}

	if event.AlertID == "" {
		return Event{}, errMissingAlertID
	}

	return event, nil
}

// Origin returns the coordinate carried by the event.
func (e Event) Origin() alert.Coordinate {
	return alert.Coordinate{
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
	}
}

// Alert builds a domain alert from a new_alert event.
func (e Event) Alert() *alert.Alert {
	return &alert.Alert{
		ID:             e.AlertID,
		Origin:         e.Origin(),
		RadiusMeters:   e.RadiusMeters,
		ResponderCount: e.ResponderCount,
		CreatedAt:      e.CreatedAt,
		Status:         alert.StatusActive,
	}
}
