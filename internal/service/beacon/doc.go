// Package beacon wires the alert client together: device identity, the REST
// client, the realtime channel, the own-alert lifecycle machine, the incoming
// alert inbox, the notification dispatcher, and the reconciliation poll.
//
// The package exposes two surfaces. Run is the Cobra entry point that builds
// everything from configuration and blocks until shutdown. Service is the
// assembled core with the user-facing operations (trigger, respond, dismiss,
// end own alert) for embedding into a UI shell.
package beacon
