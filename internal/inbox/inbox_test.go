package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
)

// testAlert builds an active alert south of the test device location.
func testAlert(id string) *alert.Alert {
	return &alert.Alert{
		ID:             id,
		Origin:         alert.Coordinate{Latitude: 9.0579, Longitude: 7.4951},
		RadiusMeters:   500,
		ResponderCount: 1,
		CreatedAt:      time.Unix(100, 0),
		Status:         alert.StatusActive,
	}
}

// deviceSouth is a device position 450 m south of the test alert origin,
// so the alert lies due north of it.
func deviceSouth() alert.Coordinate {
	return alert.Coordinate{
		Latitude:  9.0579 - 450.0/111_195.0,
		Longitude: 7.4951,
	}
}

// TestOnRemoteAlert_SurfacesFirst verifies the first admitted alert takes
// the slot and later arrivals do not displace it.
func TestOnRemoteAlert_SurfacesFirst(t *testing.T) {
	t.Parallel()

	box := New()

	require.True(t, box.OnRemoteAlert(testAlert("alert-1"), false))
	require.False(t, box.OnRemoteAlert(testAlert("alert-2"), false))

	surfaced := box.Surfaced(deviceSouth())

	require.NotNil(t, surfaced)
	require.Equal(t, "alert-1", surfaced.AlertID)
}

// TestOnRemoteAlert_DedupKeepsSurfaced verifies a repeated admission of the
// surfaced alert changes nothing but the mirror.
func TestOnRemoteAlert_DedupKeepsSurfaced(t *testing.T) {
	t.Parallel()

	box := New()
	box.OnRemoteAlert(testAlert("alert-1"), false)

	again := testAlert("alert-1")
	again.ResponderCount = 4

	require.True(t, box.OnRemoteAlert(again, false))

	surfaced := box.Surfaced(deviceSouth())

	require.Equal(t, "alert-1", surfaced.AlertID)
	require.Equal(t, 4, box.Tracked("alert-1").ResponderCount)
}

// TestOnRemoteAlert_OwnActiveBlocksSurfacing verifies nothing is surfaced
// while the device has an active alert of its own.
func TestOnRemoteAlert_OwnActiveBlocksSurfacing(t *testing.T) {
	t.Parallel()

	box := New()

	require.False(t, box.OnRemoteAlert(testAlert("alert-1"), true))
	require.Nil(t, box.Surfaced(deviceSouth()))

	// Still tracked: mirrors keep updating and it may surface later.
	require.NotNil(t, box.Tracked("alert-1"))
	require.True(t, box.OnRemoteAlert(testAlert("alert-1"), false))
}

// TestDismissThenResurface verifies dismissal frees the slot without
// suppressing the alert permanently.
func TestDismissThenResurface(t *testing.T) {
	t.Parallel()

	box := New()
	box.OnRemoteAlert(testAlert("alert-1"), false)

	box.Dismiss("alert-1")
	require.Nil(t, box.Surfaced(deviceSouth()))

	// A fresh admission of the same alert resurfaces it.
	require.True(t, box.OnRemoteAlert(testAlert("alert-1"), false))
	require.Equal(t, "alert-1", box.Surfaced(deviceSouth()).AlertID)

	// Dismissing a non-surfaced alert is a no-op.
	box.Dismiss("alert-2")
	require.NotNil(t, box.Surfaced(deviceSouth()))
}

// TestOnAlertEnded_Idempotent verifies ending removes the alert everywhere
// and repeated ends are not errors.
func TestOnAlertEnded_Idempotent(t *testing.T) {
	t.Parallel()

	box := New()
	box.OnRemoteAlert(testAlert("alert-1"), false)

	box.OnAlertEnded("alert-1")
	box.OnAlertEnded("alert-1")

	require.Nil(t, box.Surfaced(deviceSouth()))
	require.Nil(t, box.Tracked("alert-1"))
	require.Empty(t, box.TrackedIDs())
}

// TestMonotonicMirrors verifies radius and responder mirrors never decrease.
func TestMonotonicMirrors(t *testing.T) {
	t.Parallel()

	box := New()
	box.OnRemoteAlert(testAlert("alert-1"), false)

	box.OnRadiusExpanded("alert-1", 900)
	box.OnRadiusExpanded("alert-1", 700) // stale, ignored
	box.OnResponderAdded("alert-1", 5)
	box.OnResponderAdded("alert-1", 3) // stale, ignored

	tracked := box.Tracked("alert-1")

	require.InDelta(t, 900, tracked.RadiusMeters, 1e-9)
	require.Equal(t, 5, tracked.ResponderCount)

	// Updates for unknown alerts are no-ops.
	box.OnRadiusExpanded("alert-9", 100)
	box.OnResponderAdded("alert-9", 1)
	require.Nil(t, box.Tracked("alert-9"))
}

// TestSurfaced_DistanceBearing verifies the surfaced reference carries the
// recomputed geometry: an alert 450 m due north shows distance ≈450 m,
// bearing ≈0°, octant N.
func TestSurfaced_DistanceBearing(t *testing.T) {
	t.Parallel()

	box := New()
	box.OnRemoteAlert(testAlert("alert-1"), false)

	surfaced := box.Surfaced(deviceSouth())

	require.InDelta(t, 450, surfaced.DistanceMeters, 5)
	require.InDelta(t, 0, surfaced.BearingDegrees, 2)
	require.Equal(t, "N", surfaced.Octant)
	require.False(t, surfaced.LastSeenAt.IsZero())
}

// TestOnLocationUpdated verifies the origin moves and geometry follows.
func TestOnLocationUpdated(t *testing.T) {
	t.Parallel()

	box := New()
	box.OnRemoteAlert(testAlert("alert-1"), false)

	// The origin moves east of the device.
	box.OnLocationUpdated("alert-1", alert.Coordinate{Latitude: 9.0579, Longitude: 7.51})

	device := alert.Coordinate{Latitude: 9.0579, Longitude: 7.4951}
	surfaced := box.Surfaced(device)

	require.Equal(t, "E", surfaced.Octant)

	// Unusable origins are ignored.
	box.OnLocationUpdated("alert-1", alert.Coordinate{})
	require.Equal(t, "E", box.Surfaced(device).Octant)
}
