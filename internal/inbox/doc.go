// Package inbox deduplicates and ranks alerts originating from other devices.
//
// The Inbox tracks every alert it has been told about and keeps at most one
// of them "surfaced" for the user to act on. The surfaced slot is sticky:
// once an alert occupies it, later arrivals never displace it, so the UI does
// not thrash between candidates. All entry points are idempotent because the
// realtime stream delivers at-least-once and the sync poll replays state.
package inbox
