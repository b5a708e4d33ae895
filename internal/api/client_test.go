package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
)

// testLocation is a usable device location for request payloads.
func testLocation() alert.DeviceLocation {
	return alert.DeviceLocation{
		Coordinate: alert.Coordinate{Latitude: 9.0579, Longitude: 7.4951},
		CapturedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestNewClient verifies URL validation and trailing-slash normalization.
func TestNewClient(t *testing.T) {
	t.Parallel()

	_, err := NewClient("")
	require.ErrorIs(t, err, errBaseURLRequired)

	_, err = NewClient("not a url")
	require.Error(t, err)

	client, err := NewClient("https://alerts.local/api/")
	require.NoError(t, err)
	require.Equal(t, "https://alerts.local/api", client.baseURL)
}

// TestTriggerAlert verifies the trigger round-trip and payload shape.
func TestTriggerAlert(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/alerts", r.URL.Path)

		var request triggerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		require.Equal(t, "device-1", request.DeviceID)
		require.InDelta(t, 9.0579, request.Location.Latitude, 1e-9)

		_ = json.NewEncoder(w).Encode(triggerResponse{AlertID: "alert-42"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	alertID, err := client.TriggerAlert(context.Background(), "device-1", testLocation())

	require.NoError(t, err)
	require.Equal(t, "alert-42", alertID)
}

// TestDeviceStatusAndNearby verifies status and nearby-alert fetches decode
// into domain values.
func TestDeviceStatusAndNearby(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/devices/device-1/status", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(DeviceStatus{
			CooldownRemainingSeconds: 45,
			ActiveAlertID:            "alert-42",
		})
	})
	mux.HandleFunc("/alerts/nearby", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "device-1", r.URL.Query().Get("device_id"))

		_ = json.NewEncoder(w).Encode(nearbyAlertsResponse{
			Alerts: []alertPayload{{
				AlertID:        "alert-7",
				Latitude:       9.0579,
				Longitude:      7.4951,
				RadiusMeters:   500,
				ResponderCount: 2,
				Status:         "active",
			}},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	status, err := client.DeviceStatus(context.Background(), "device-1")

	require.NoError(t, err)
	require.Equal(t, 45*time.Second, status.CooldownRemaining())
	require.Equal(t, "alert-42", status.ActiveAlertID)

	alerts, err := client.NearbyAlerts(context.Background(), "device-1",
		alert.Coordinate{Latitude: 9.05, Longitude: 7.49})

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "alert-7", alerts[0].ID)
	require.Equal(t, alert.StatusActive, alerts[0].Status)
}

// TestErrorTaxonomy verifies status codes map onto the shared error taxonomy.
func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	var status int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	// Conflict: trigger while cooling down or already active.
	status = http.StatusConflict
	_, err = client.TriggerAlert(context.Background(), "device-1", testLocation())
	require.ErrorIs(t, err, alert.ErrPreconditionFailed)

	// Gateway trouble is transient.
	status = http.StatusServiceUnavailable
	err = client.EndAlert(context.Background(), "device-1", "alert-42")
	require.ErrorIs(t, err, alert.ErrNetworkUnavailable)

	// Anything else is a plain error.
	status = http.StatusTeapot
	err = client.RegisterDevice(context.Background(), &Device{ID: "device-1"})
	require.Error(t, err)
	require.NotErrorIs(t, err, alert.ErrNetworkUnavailable)
}

// TestConnectionFailure verifies refused connections surface as
// ErrNetworkUnavailable.
func TestConnectionFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // nothing listens anymore

	client, err := NewClient(server.URL, WithCallTimeout(time.Second))
	require.NoError(t, err)

	_, err = client.DeviceStatus(context.Background(), "device-1")
	require.ErrorIs(t, err, alert.ErrNetworkUnavailable)
}

// TestRespondAndCount verifies the responder and nearby-count round-trips.
func TestRespondAndCount(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/alerts/alert-7/respond", func(w http.ResponseWriter, r *http.Request) {
		var request respondRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		require.Equal(t, "device-1", request.DeviceID)

		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/users/nearby/count", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(nearbyUserCountResponse{Count: 12})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	require.NoError(t, client.RespondToAlert(context.Background(), "device-1", "alert-7", testLocation()))

	count, err := client.NearbyUserCount(context.Background(),
		alert.Coordinate{Latitude: 9.05, Longitude: 7.49}, 1000)

	require.NoError(t, err)
	require.Equal(t, 12, count)
}
