package api

import (
	"time"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
)

// Device is the registration payload identifying this installation.
type Device struct {
	// ID is the device identity, generated locally on first run.
	ID string `json:"device_id"`
	// Hostname and Username describe the installation for audit trails.
	Hostname string `json:"hostname,omitempty"`
	Username string `json:"username,omitempty"`
	// Platform names the client platform ("daemon", "android", "ios", "web").
	Platform string `json:"platform,omitempty"`
}

// locationPayload is the wire form of a device location fix.
type locationPayload struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Heading    *float64   `json:"heading,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// newLocationPayload converts a domain location fix to its wire form.
func newLocationPayload(location alert.DeviceLocation) locationPayload {
	payload := locationPayload{
		Latitude:  location.Coordinate.Latitude,
		Longitude: location.Coordinate.Longitude,
		Heading:   location.Heading,
	}

	if !location.CapturedAt.IsZero() {
		capturedAt := location.CapturedAt
		payload.CapturedAt = &capturedAt
	}

	return payload
}

// DeviceStatus is the authoritative per-device state fetched by the sync poll.
type DeviceStatus struct {
	// CooldownRemainingSeconds is the time left before another trigger is
	// allowed, zero when none.
	CooldownRemainingSeconds int `json:"cooldown_remaining_seconds"`
	// ActiveAlertID identifies the device's active alert, empty when none.
	ActiveAlertID string `json:"active_alert_id,omitempty"`
}

// CooldownRemaining returns the cooldown remainder as a duration.
func (s *DeviceStatus) CooldownRemaining() time.Duration {
	return time.Duration(s.CooldownRemainingSeconds) * time.Second
}

// triggerRequest asks the service to create a new alert.
type triggerRequest struct {
	DeviceID string          `json:"device_id"`
	Location locationPayload `json:"location"`
}

// triggerResponse carries the server-assigned identity of a new alert.
type triggerResponse struct {
	AlertID string `json:"alert_id"`
}

// endRequest asks the service to terminate an alert.
type endRequest struct {
	DeviceID string `json:"device_id"`
}

// respondRequest marks this device as a responder to an alert.
type respondRequest struct {
	DeviceID string          `json:"device_id"`
	Location locationPayload `json:"location"`
}

// alertPayload is the wire form of one alert.
type alertPayload struct {
	AlertID        string    `json:"alert_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	RadiusMeters   float64   `json:"radius_meters"`
	ResponderCount int       `json:"responder_count"`
	CreatedAt      time.Time `json:"created_at"`
	Status         string    `json:"status"`
}

// toDomain converts the wire form into a domain alert.
func (p *alertPayload) toDomain() *alert.Alert {
	return &alert.Alert{
		ID: p.AlertID,
		Origin: alert.Coordinate{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		},
		RadiusMeters:   p.RadiusMeters,
		ResponderCount: p.ResponderCount,
		CreatedAt:      p.CreatedAt,
		Status:         alert.Status(p.Status),
	}
}

// nearbyAlertsResponse lists alerts within notification range of the device.
type nearbyAlertsResponse struct {
	Alerts []alertPayload `json:"alerts"`
}

// nearbyUserCountResponse carries the number of users near a point.
type nearbyUserCountResponse struct {
	Count int `json:"count"`
}
