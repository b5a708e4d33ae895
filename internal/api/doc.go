// Package api implements the REST client for the alert service.
//
// The Client wraps net/http with a base URL, per-call timeouts, request
// pacing, and mapping of transport and status failures onto the shared error
// taxonomy: connection failures and gateway errors surface as
// alert.ErrNetworkUnavailable (retryable), conflict responses as
// alert.ErrPreconditionFailed (reported, never retried). Payload shapes are
// the collaborator contract of the alert service; the client converts them
// to and from the domain types at the boundary.
package api
