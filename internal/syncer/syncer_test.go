package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/safety-beacon/internal/api"
	"github.com/oshokin/safety-beacon/internal/domain/alert"
	"github.com/oshokin/safety-beacon/internal/inbox"
)

type fakeStatusAPI struct {
	status    *api.DeviceStatus
	statusErr error
	nearby    []*alert.Alert
	nearbyErr error
	details   map[string]*alert.Alert
	detailErr map[string]error
}

func (f *fakeStatusAPI) DeviceStatus(_ context.Context, _ string) (*api.DeviceStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}

	if f.status == nil {
		return &api.DeviceStatus{}, nil
	}

	return f.status, nil
}

func (f *fakeStatusAPI) NearbyAlerts(_ context.Context, _ string, _ alert.Coordinate) ([]*alert.Alert, error) {
	return f.nearby, f.nearbyErr
}

func (f *fakeStatusAPI) AlertDetail(_ context.Context, alertID string) (*alert.Alert, error) {
	if err, ok := f.detailErr[alertID]; ok {
		return nil, err
	}

	if detail, ok := f.details[alertID]; ok {
		return detail, nil
	}

	return nil, api.ErrNotFound
}

type fakeReconciler struct {
	state        alert.MyAlertState
	gotActiveID  string
	gotCooldown  time.Duration
	reconciled   int
	divergedNext bool
}

func (f *fakeReconciler) Reconcile(activeAlertID string, cooldownRemaining time.Duration) bool {
	f.reconciled++
	f.gotActiveID = activeAlertID
	f.gotCooldown = cooldownRemaining

	return f.divergedNext
}

func (f *fakeReconciler) State() alert.MyAlertState {
	return f.state
}

type fakeRooms struct {
	joined []string
	left   []string
}

func (f *fakeRooms) SubscribeToAlert(alertID string) error {
	f.joined = append(f.joined, alertID)
	return nil
}

func (f *fakeRooms) UnsubscribeFromAlert(alertID string) error {
	f.left = append(f.left, alertID)
	return nil
}

func testOrigin() alert.Coordinate {
	return alert.Coordinate{Latitude: 9.0579, Longitude: 7.4951}
}

func remoteAlert(id string) *alert.Alert {
	return &alert.Alert{
		ID:           id,
		Origin:       testOrigin(),
		Status:       alert.StatusActive,
		RadiusMeters: 500,
	}
}

func newTestCoordinator(
	client *fakeStatusAPI,
	machine *fakeReconciler,
	box *inbox.Inbox,
	rooms *fakeRooms,
) *Coordinator {
	return New(client, machine, box, rooms, "device-1", testOrigin, time.Minute)
}

// TestTickReconcilesDeviceStatus verifies the authoritative device status is
// pushed through the lifecycle reconciler on every tick.
func TestTickReconcilesDeviceStatus(t *testing.T) {
	t.Parallel()

	client := &fakeStatusAPI{
		status: &api.DeviceStatus{CooldownRemainingSeconds: 42, ActiveAlertID: "srv-9"},
	}
	machine := &fakeReconciler{}
	s := newTestCoordinator(client, machine, inbox.New(), &fakeRooms{})

	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, 1, machine.reconciled)
	require.Equal(t, "srv-9", machine.gotActiveID)
	require.Equal(t, 42*time.Second, machine.gotCooldown)
}

// TestTickReportsStaleDivergence verifies a diverged own-alert state is
// reported as ErrStaleData after the tick still completes in full.
func TestTickReportsStaleDivergence(t *testing.T) {
	t.Parallel()

	client := &fakeStatusAPI{
		status: &api.DeviceStatus{ActiveAlertID: "srv-9"},
		nearby: []*alert.Alert{remoteAlert("a-1")},
	}
	machine := &fakeReconciler{divergedNext: true}
	box := inbox.New()
	s := newTestCoordinator(client, machine, box, &fakeRooms{})

	err := s.Tick(context.Background())
	require.ErrorIs(t, err, alert.ErrStaleData)

	// The divergence did not abort the rest of the pass.
	require.Equal(t, []string{"a-1"}, box.TrackedIDs())
}

// TestTickAdmitsNearbyAlerts verifies nearby alerts are admitted into the
// inbox and their rooms joined.
func TestTickAdmitsNearbyAlerts(t *testing.T) {
	t.Parallel()

	client := &fakeStatusAPI{
		nearby: []*alert.Alert{remoteAlert("a-1"), remoteAlert("a-2")},
	}
	box := inbox.New()
	rooms := &fakeRooms{}
	s := newTestCoordinator(client, &fakeReconciler{}, box, rooms)

	require.NoError(t, s.Tick(context.Background()))
	require.ElementsMatch(t, []string{"a-1", "a-2"}, box.TrackedIDs())
	require.ElementsMatch(t, []string{"a-1", "a-2"}, rooms.joined)
}

// TestTickSkipsOwnAlert verifies the device's own alert is never admitted as
// an incoming one.
func TestTickSkipsOwnAlert(t *testing.T) {
	t.Parallel()

	client := &fakeStatusAPI{
		nearby: []*alert.Alert{remoteAlert("mine"), remoteAlert("theirs")},
	}
	machine := &fakeReconciler{
		state: alert.MyAlertState{Phase: alert.PhaseActive, AlertID: "mine"},
	}
	box := inbox.New()
	s := newTestCoordinator(client, machine, box, &fakeRooms{})

	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, []string{"theirs"}, box.TrackedIDs())

	// The own alert is active, so nothing may occupy the surfaced slot.
	require.Nil(t, box.Surfaced(testOrigin()))
}

// TestTickSweepsEndedAlert verifies a tracked alert reported as ended is
// removed and its room left.
func TestTickSweepsEndedAlert(t *testing.T) {
	t.Parallel()

	box := inbox.New()
	require.True(t, box.OnRemoteAlert(remoteAlert("gone"), false))

	ended := remoteAlert("gone")
	ended.Status = alert.StatusEnded

	client := &fakeStatusAPI{
		details: map[string]*alert.Alert{"gone": ended},
	}
	rooms := &fakeRooms{}
	s := newTestCoordinator(client, &fakeReconciler{}, box, rooms)

	require.NoError(t, s.Tick(context.Background()))
	require.Empty(t, box.TrackedIDs())
	require.Equal(t, []string{"gone"}, rooms.left)
}

// TestTickSweepsVanishedAlert verifies a tracked alert the service no longer
// knows is removed and its room left.
func TestTickSweepsVanishedAlert(t *testing.T) {
	t.Parallel()

	box := inbox.New()
	require.True(t, box.OnRemoteAlert(remoteAlert("vanished"), false))

	// The fake returns api.ErrNotFound for alerts without a scripted detail.
	client := &fakeStatusAPI{}
	rooms := &fakeRooms{}
	s := newTestCoordinator(client, &fakeReconciler{}, box, rooms)

	require.NoError(t, s.Tick(context.Background()))
	require.Empty(t, box.TrackedIDs())
	require.Equal(t, []string{"vanished"}, rooms.left)
}

// TestTickKeepsOutOfRangeActiveAlert verifies an alert that merely dropped
// out of the nearby list stays tracked while still active.
func TestTickKeepsOutOfRangeActiveAlert(t *testing.T) {
	t.Parallel()

	box := inbox.New()
	require.True(t, box.OnRemoteAlert(remoteAlert("far"), false))

	// Still active on the service; it merely dropped out of the nearby list.
	client := &fakeStatusAPI{
		details: map[string]*alert.Alert{"far": remoteAlert("far")},
	}
	rooms := &fakeRooms{}
	s := newTestCoordinator(client, &fakeReconciler{}, box, rooms)

	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, []string{"far"}, box.TrackedIDs())
	require.Empty(t, rooms.left)
}

// TestTickKeepsTrackedOnDetailError verifies a transient detail-fetch error
// does not evict a tracked alert.
func TestTickKeepsTrackedOnDetailError(t *testing.T) {
	t.Parallel()

	box := inbox.New()
	require.True(t, box.OnRemoteAlert(remoteAlert("flaky"), false))

	client := &fakeStatusAPI{
		detailErr: map[string]error{"flaky": errors.New("upstream timeout")},
	}
	s := newTestCoordinator(client, &fakeReconciler{}, box, &fakeRooms{})

	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, []string{"flaky"}, box.TrackedIDs())
}

// TestTickPropagatesStatusError verifies a status-fetch failure aborts the
// tick before any reconciliation.
func TestTickPropagatesStatusError(t *testing.T) {
	t.Parallel()

	statusErr := errors.New("service unreachable")
	client := &fakeStatusAPI{statusErr: statusErr}
	machine := &fakeReconciler{}
	s := newTestCoordinator(client, machine, inbox.New(), &fakeRooms{})

	require.ErrorIs(t, s.Tick(context.Background()), statusErr)
	require.Zero(t, machine.reconciled)
}

// TestRunStopsOnContextCancel verifies the polling loop exits promptly on
// context cancellation.
func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := newTestCoordinator(&fakeStatusAPI{}, &fakeReconciler{}, inbox.New(), &fakeRooms{})

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
