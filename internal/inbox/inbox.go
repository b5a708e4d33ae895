package inbox

import (
	"sync"
	"time"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
	"github.com/oshokin/safety-beacon/internal/geo"
)

// Inbox owns the set of alerts originating from other devices and the single
// surfaced slot. All methods are safe for concurrent use.
type Inbox struct {
	// mu serializes every mutation; realtime events and sync ticks both
	// write here and must not interleave.
	mu sync.Mutex
	// tracked maps alert ID to the locally cached alert mirror.
	tracked map[string]*alert.Alert
	// lastSeen records when an event for each alert last arrived.
	lastSeen map[string]time.Time
	// surfacedID is the alert currently presented for user action,
	// empty when none.
	surfacedID string
	// now is the clock, swapped in tests.
	now func() time.Time
}

// New creates an empty inbox.
func New() *Inbox {
	return &Inbox{
		tracked:  make(map[string]*alert.Alert),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// OnRemoteAlert admits an alert from another device and reports whether it
// became the surfaced one. An alert is surfaced only when no other alert
// occupies the slot and the device has no active alert of its own; after
// that the slot is sticky until dismissal or the alert's end. Repeated
// admissions of the same alert refresh its mirror and last-seen time only.
func (i *Inbox) OnRemoteAlert(incoming *alert.Alert, ownActive bool) bool {
	if incoming == nil || incoming.ID == "" {
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	existing, known := i.tracked[incoming.ID]
	if known {
		// Refresh the mirror without ever shrinking the monotonic counters.
		if incoming.RadiusMeters > existing.RadiusMeters {
			existing.RadiusMeters = incoming.RadiusMeters
		}

		if incoming.ResponderCount > existing.ResponderCount {
			existing.ResponderCount = incoming.ResponderCount
		}

		if incoming.Origin.IsUsable() {
			existing.Origin = incoming.Origin
		}
	} else {
		i.tracked[incoming.ID] = incoming.Clone()
	}

	i.lastSeen[incoming.ID] = i.now()

	if i.surfacedID == "" && !ownActive {
		i.surfacedID = incoming.ID
		return true
	}

	return i.surfacedID == incoming.ID
}

// Dismiss clears the surfaced slot if it holds the given alert. The alert
// stays tracked, so a later admission may resurface it; dismissal is a
// UI-session decision, not a permanent suppression.
func (i *Inbox) Dismiss(alertID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.surfacedID == alertID {
		i.surfacedID = ""
	}
}

// OnAlertEnded removes the alert from the surfaced slot and the tracked set.
// Removing an unknown alert is not an error.
func (i *Inbox) OnAlertEnded(alertID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.surfacedID == alertID {
		i.surfacedID = ""
	}

	delete(i.tracked, alertID)
	delete(i.lastSeen, alertID)
}

// OnRadiusExpanded mirrors a grown notification radius. The cached value
// never decreases.
func (i *Inbox) OnRadiusExpanded(alertID string, radiusMeters float64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	tracked, ok := i.tracked[alertID]
	if !ok {
		return
	}

	if radiusMeters > tracked.RadiusMeters {
		tracked.RadiusMeters = radiusMeters
	}

	i.lastSeen[alertID] = i.now()
}

// OnResponderAdded mirrors an updated responder count. The cached value
// never decreases.
func (i *Inbox) OnResponderAdded(alertID string, responderCount int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	tracked, ok := i.tracked[alertID]
	if !ok {
		return
	}

	if responderCount > tracked.ResponderCount {
		tracked.ResponderCount = responderCount
	}

	i.lastSeen[alertID] = i.now()
}

// OnLocationUpdated moves the cached origin of a tracked alert.
func (i *Inbox) OnLocationUpdated(alertID string, origin alert.Coordinate) {
	i.mu.Lock()
	defer i.mu.Unlock()

	tracked, ok := i.tracked[alertID]
	if !ok || !origin.IsUsable() {
		return
	}

	tracked.Origin = origin
	i.lastSeen[alertID] = i.now()
}

// Surfaced returns a reference to the surfaced alert with distance, bearing,
// and octant computed from the provided device location, or nil when nothing
// is surfaced. Values are recomputed on every call, never cached.
func (i *Inbox) Surfaced(device alert.Coordinate) *alert.IncomingAlertRef {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.surfacedID == "" {
		return nil
	}

	tracked, ok := i.tracked[i.surfacedID]
	if !ok {
		return nil
	}

	bearing := geo.InitialBearingDegrees(device, tracked.Origin)

	return &alert.IncomingAlertRef{
		AlertID:        tracked.ID,
		DistanceMeters: geo.DistanceMeters(device, tracked.Origin),
		BearingDegrees: bearing,
		Octant:         geo.CompassOctant(bearing),
		LastSeenAt:     i.lastSeen[tracked.ID],
	}
}

// Tracked returns a snapshot of the alert with the given ID, or nil.
func (i *Inbox) Tracked(alertID string) *alert.Alert {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.tracked[alertID].Clone()
}

// TrackedIDs returns the IDs of every tracked alert.
func (i *Inbox) TrackedIDs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	ids := make([]string, 0, len(i.tracked))
	for id := range i.tracked {
		ids = append(ids, id)
	}

	return ids
}
