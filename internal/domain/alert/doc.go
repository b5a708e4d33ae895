// Package alert contains core domain types for the emergency alert business logic.
//
// It defines Coordinate and DeviceLocation (where things are), Alert (a single
// emergency event with an expanding radius and responder count), MyAlertState
// (the phase of this device's own alert), and IncomingAlertRef (the incoming
// alert currently surfaced to the user), with Clone helpers to avoid leaking
// internal references. The package also holds the shared error taxonomy used
// by the lifecycle, sync, and API layers.
package alert
