package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
)

// TestDecode verifies wire payloads decode into typed events and invalid
// payloads are rejected.
func TestDecode(t *testing.T) {
	t.Parallel()

	event, err := Decode([]byte(`{
		"type": "new_alert",
		"alert_id": "alert-1",
		"latitude": 9.0579,
		"longitude": 7.4951,
		"radius_meters": 500,
		"responder_count": 2,
		"created_at": "2025-06-01T12:00:00Z"
	}`))

	require.NoError(t, err)
	require.Equal(t, TypeNewAlert, event.Type)
	require.Equal(t, "alert-1", event.AlertID)
	require.InDelta(t, 9.0579, event.Latitude, 1e-9)
	require.Equal(t, 2, event.ResponderCount)

	ended, err := Decode([]byte(`{"type":"alert_ended","alert_id":"alert-1","reason":"user_safe"}`))

	require.NoError(t, err)
	require.Equal(t, alert.EndReasonUserSafe, ended.Reason)

	// Rejections.
	_, err = Decode(nil)
	require.ErrorIs(t, err, errEmptyPayload)

	_, err = Decode([]byte(`{"type":"party_started","alert_id":"alert-1"}`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"type":"new_alert"}`))
	require.ErrorIs(t, err, errMissingAlertID)

	// Locally synthesized types never arrive on the wire.
	_, err = Decode([]byte(`{"type":"connected","alert_id":"alert-1"}`))
	require.Error(t, err)
}

// TestEventAlert verifies new_alert events convert into domain alerts.
func TestEventAlert(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := Event{
		Type:           TypeNewAlert,
		AlertID:        "alert-1",
		Latitude:       9.0579,
		Longitude:      7.4951,
		RadiusMeters:   500,
		ResponderCount: 1,
		CreatedAt:      createdAt,
	}

	built := event.Alert()

	require.Equal(t, "alert-1", built.ID)
	require.Equal(t, alert.Coordinate{Latitude: 9.0579, Longitude: 7.4951}, built.Origin)
	require.Equal(t, alert.StatusActive, built.Status)
	require.Equal(t, createdAt, built.CreatedAt)
}
