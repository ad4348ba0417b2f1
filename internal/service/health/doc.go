// Package health inspects managed components: service manager state, binary
// presence, reported version, and RPC reachability. Reports feed the
// monitoring API and metrics. Checks observe and never mutate, so they are
// safe to run at any time, including mid-upgrade.
package health
