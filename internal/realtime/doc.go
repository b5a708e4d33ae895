// Package realtime maintains the device's connection to the room-scoped alert
// event stream.
//
// A Channel keeps one logical connection per device identity, joins the
// device-scoped room plus a per-alert room for every alert of interest, and
// delivers typed events on a single stream. Delivery is at-least-once:
// consumers must be idempotent. On connection loss the channel reconnects
// with bounded exponential backoff and rejoins every previously subscribed
// room without caller involvement; after the attempt budget is exhausted it
// surfaces a persistent-offline event and keeps retrying at the backoff cap.
package realtime
