// Package lifecycle implements the state machine governing this device's own
// alert.
//
// The Machine moves between Idle, Active, and Cooldown. A trigger enters
// Active immediately under a provisional identity while the alert service
// call runs in the background; the server-assigned ID is reconciled on
// confirmation, or the machine falls back to Idle when the call fails. The
// cooldown countdown is armed on confirmation and runs concurrently with the
// active countdown; local auto-expiry keeps the device consistent even when
// the authoritative alert_ended event is delayed or lost. Every mutating
// entry point is serialized, so a reconciliation tick and a realtime end
// arriving together cannot flip state twice: the second application on an
// already-idle machine is a no-op.
package lifecycle
