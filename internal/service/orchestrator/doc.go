// Package orchestrator drives the upgrade state machine.
//
// An upgrade runs Fetching, BackingUp, Stopping, Replacing, Starting, and
// Verifying in order, holding an exclusive per-component lock. Failures
// before the service is touched abort cleanly; failures afterwards restore
// the pre-upgrade snapshot. Every run ends in exactly one terminal state and
// is recorded in history.
package orchestrator
