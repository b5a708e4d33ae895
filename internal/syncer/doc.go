// Package syncer reconciles local alert state with the alert service.
//
// The realtime channel can miss events around reconnects and backgrounding;
// the Coordinator is the correcting poll that closes those gaps. On a fixed
// tick it fetches the authoritative device status and the nearby-alert list,
// then feeds them through the same idempotent lifecycle and inbox entry
// points the realtime events use, so a tick and a live event applying the
// same fact cannot flip state twice. Remote state always wins on divergence.
package syncer
