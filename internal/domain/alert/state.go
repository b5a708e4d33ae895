package alert

import "time"

// Coordinate is an immutable geographic point in decimal degrees.
type Coordinate struct {
	// Latitude is in the range [-90, 90].
	Latitude float64 `json:"latitude"`
	// Longitude is in the range [-180, 180].
	Longitude float64 `json:"longitude"`
}

// IsValid reports whether both components are inside their legal ranges.
func (c Coordinate) IsValid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// IsZero reports whether the coordinate is the zero sentinel.
// The zero value means "location unknown" rather than a point in the
// Gulf of Guinea; producers never emit a literal (0, 0) fix.
func (c Coordinate) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// IsUsable reports whether the coordinate carries a real position.
func (c Coordinate) IsUsable() bool {
	return c.IsValid() && !c.IsZero()
}

// DeviceLocation is a single location fix produced by a location provider.
type DeviceLocation struct {
	// Coordinate is the position of the device at capture time.
	Coordinate Coordinate
	// Heading is the direction of travel in degrees [0, 360), when known.
	Heading *float64
	// CapturedAt is when the fix was taken.
	CapturedAt time.Time
}

// Clone returns a deep copy of the location.
func (l *DeviceLocation) Clone() *DeviceLocation {
	if l == nil {
		return nil
	}

	cloned := *l

	if l.Heading != nil {
		heading := *l.Heading
		cloned.Heading = &heading
	}

	return &cloned
}

// Status is the lifecycle status of an alert as reported by the alert service.
type Status string

const (
	// StatusActive marks an alert that is still in progress.
	StatusActive Status = "active"
	// StatusEnded marks an alert that has been terminated; the transition
	// from active to ended happens exactly once and is irreversible.
	StatusEnded Status = "ended"
)

// EndReason explains why an alert was ended.
type EndReason string

const (
	// EndReasonUserSafe means the originating user marked themselves safe.
	EndReasonUserSafe EndReason = "user_safe"
	// EndReasonTimeout means the alert expired server-side.
	EndReasonTimeout EndReason = "timeout"
	// EndReasonAdmin means an administrator ended the alert.
	EndReasonAdmin EndReason = "admin"
)

// Alert is a single emergency event originated by some device.
// Identity is the server-assigned ID; RadiusMeters and ResponderCount are
// locally cached mirrors that only ever grow while the alert is active.
type Alert struct {
	// ID is the opaque server-assigned alert identity.
	ID string
	// Origin is the current location of the alert source.
	Origin Coordinate
	// RadiusMeters is the current notification radius.
	RadiusMeters float64
	// ResponderCount is the number of devices that responded so far.
	ResponderCount int
	// CreatedAt is when the alert was created server-side.
	CreatedAt time.Time
	// Status is the last known lifecycle status.
	Status Status
}

// Clone returns a copy of the alert to avoid leaking internal references.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Phase enumerates the states of this device's own alert.
type Phase string

const (
	// PhaseIdle means no own alert and no cooldown in effect.
	PhaseIdle Phase = "idle"
	// PhaseCooldown means the mandatory post-trigger waiting period is running.
	PhaseCooldown Phase = "cooldown"
	// PhaseActive means this device's own alert is in progress.
	PhaseActive Phase = "active"
)

// MyAlertState is a snapshot of the state machine owning this device's alert.
// Exactly one instance exists per device; the alert ID is provisional until
// the alert service confirms the trigger.
type MyAlertState struct {
	// Phase is the current state of the machine.
	Phase Phase
	// AlertID identifies the own alert while Phase is PhaseActive.
	AlertID string
	// Provisional reports whether AlertID is a locally generated placeholder
	// still awaiting server confirmation.
	Provisional bool
	// Origin is the location the alert was triggered from.
	Origin Coordinate
	// StartedAt is the trigger instant.
	StartedAt time.Time
	// Duration is the active countdown after which the alert expires locally.
	Duration time.Duration
	// CooldownRemaining is the time left before another trigger is allowed.
	// It is never negative.
	CooldownRemaining time.Duration
}

// Clone returns a copy of the state.
func (s *MyAlertState) Clone() *MyAlertState {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// IncomingAlertRef describes the single incoming alert currently surfaced to
// the user, with distance and bearing recomputed from the freshest locations.
type IncomingAlertRef struct {
	// AlertID identifies the surfaced alert.
	AlertID string
	// DistanceMeters is the great-circle distance from the device to the origin.
	DistanceMeters float64
	// BearingDegrees is the initial bearing from the device to the origin, [0, 360).
	BearingDegrees float64
	// Octant is the compass octant of BearingDegrees (N, NE, ... NW).
	Octant string
	// LastSeenAt is when an event for this alert was last received.
	LastSeenAt time.Time
}

// Clone returns a copy of the reference.
func (r *IncomingAlertRef) Clone() *IncomingAlertRef {
	if r == nil {
		return nil
	}

	cloned := *r

	return &cloned
}
