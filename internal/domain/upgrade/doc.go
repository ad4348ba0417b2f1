// Package upgrade contains the core domain types of the orchestration engine.
//
// It defines Component (immutable configuration of a managed node binary),
// Backup (a pre-upgrade snapshot), Request and Outcome (one orchestration
// run and its result), the state machine stages, and the sentinel error
// taxonomy with its stable FailureKind classification.
package upgrade
