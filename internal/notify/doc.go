// Package notify translates lifecycle and inbox activity into sensory-alert
// burst requests.
//
// The Dispatcher decides that a sound-and-vibration burst must fire; the
// platform layer consuming its request stream decides how. At most one burst
// is in flight at a time: overlapping fire calls are dropped, never queued,
// and a burst self-terminates after a fixed ceiling so the platform resources
// are never held indefinitely. No call ever blocks the caller.
package notify
