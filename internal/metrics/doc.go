// Package metrics defines the Prometheus collectors exposed by the
// monitoring server and fed by the orchestrator and health services.
package metrics
