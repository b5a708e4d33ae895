package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestCoordinateUsability verifies range validation and the zero sentinel.
func TestCoordinateUsability(t *testing.T) {
	t.Parallel()

	require.True(t, Coordinate{Latitude: 9.0579, Longitude: 7.4951}.IsUsable())
	require.False(t, Coordinate{}.IsUsable())
	require.True(t, Coordinate{}.IsValid())
	require.False(t, Coordinate{Latitude: 91, Longitude: 0}.IsValid())
	require.False(t, Coordinate{Latitude: 0, Longitude: -181}.IsValid())
}

// TestDeviceLocationClone verifies that Clone deep-copies the heading and handles nil safely.
func TestDeviceLocationClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*DeviceLocation)(nil).Clone())

	heading := 42.5
	loc := &DeviceLocation{
		Coordinate: Coordinate{Latitude: 9.0579, Longitude: 7.4951},
		Heading:    &heading,
		CapturedAt: time.Now(),
	}

	cloned := loc.Clone()

	require.Equal(t, loc, cloned)
	require.NotSame(t, loc, cloned)
	require.NotSame(t, loc.Heading, cloned.Heading)
}

// TestAlertClone verifies that Clone returns an independent copy.
func TestAlertClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Alert)(nil).Clone())

	a := &Alert{
		ID:             "alert-1",
		Origin:         Coordinate{Latitude: 9.06, Longitude: 7.49},
		RadiusMeters:   500,
		ResponderCount: 3,
		CreatedAt:      time.Unix(100, 0),
		Status:         StatusActive,
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
}

// TestMyAlertStateClone verifies that snapshots are copied, not shared.
func TestMyAlertStateClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*MyAlertState)(nil).Clone())

	s := &MyAlertState{
		Phase:             PhaseActive,
		AlertID:           "alert-1",
		StartedAt:         time.Unix(200, 0),
		Duration:          20 * time.Minute,
		CooldownRemaining: 45 * time.Second,
	}

	c := s.Clone()

	require.Equal(t, s, c)
	require.NotSame(t, s, c)
}
