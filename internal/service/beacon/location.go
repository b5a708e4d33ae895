package beacon

import (
	"time"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
)

// LocationProvider produces the device's current location fix. Implementations
// must be safe for concurrent use.
type LocationProvider interface {
	// Current returns the freshest available fix. A fix with an unusable
	// coordinate means the position is unknown.
	Current() alert.DeviceLocation
}

// fixedProvider reports the configured installation coordinates. Beacon
// devices are stationary wall units, so the position comes from setup-time
// configuration rather than a positioning sensor.
type fixedProvider struct {
	coordinate alert.Coordinate
}

// NewFixedProvider returns a provider pinned to the given coordinate.
func NewFixedProvider(coordinate alert.Coordinate) LocationProvider {
	return fixedProvider{coordinate: coordinate}
}

// Current returns the pinned coordinate with a fresh capture time.
func (p fixedProvider) Current() alert.DeviceLocation {
	return alert.DeviceLocation{
		Coordinate: p.coordinate,
		CapturedAt: time.Now(),
	}
}
