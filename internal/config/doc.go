// Package config defines settings for the beacon daemon and provides helpers
// to load, validate and save them in YAML format.
//
// The Config type holds the alert service URL, the realtime broker address,
// the installation coordinates, and the timer durations driving the alert
// lifecycle (cooldown, active countdown, sync and location update periods).
package config
