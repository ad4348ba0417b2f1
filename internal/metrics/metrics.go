package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
)

// Metrics holds the Prometheus collectors for orchestration runs and health
// probes. A nil *Metrics is a valid no-op receiver so one-shot command runs
// can skip registration entirely.
type Metrics struct {
	// UpgradesTotal counts finished upgrade runs by component and status.
	UpgradesTotal *prometheus.CounterVec
	// UpgradeDuration tracks how long upgrade runs take per component.
	UpgradeDuration *prometheus.HistogramVec
	// RollbacksTotal counts finished rollback runs by component and status.
	RollbacksTotal *prometheus.CounterVec
	// HealthChecksTotal counts every health check performed.
	HealthChecksTotal prometheus.Counter
	// HealthCheckFailures counts failed health checks by component.
	HealthCheckFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors with their stable names.
func NewMetrics() *Metrics {
	return &Metrics{
		UpgradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_sentinel_upgrades_total",
			Help: "Total number of finished upgrade runs",
		}, []string{"component", "status"}),

		UpgradeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "node_sentinel_upgrade_duration_seconds",
			Help:    "Duration of upgrade runs from start to terminal state",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"component"}),

		RollbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_sentinel_rollbacks_total",
			Help: "Total number of finished rollback runs",
		}, []string{"component", "status"}),

		HealthChecksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "node_sentinel_health_checks_total",
			Help: "Total number of component health checks performed",
		}),

		HealthCheckFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_sentinel_health_check_failures_total",
			Help: "Total number of failed component health checks",
		}, []string{"component"}),
	}
}

// ObserveUpgrade records one finished upgrade run.
func (m *Metrics) ObserveUpgrade(component string, status domain.Status, duration time.Duration) {
	if m == nil {
		return
	}

	m.UpgradesTotal.WithLabelValues(component, string(status)).Inc()
	m.UpgradeDuration.WithLabelValues(component).Observe(duration.Seconds())
}

// ObserveRollback records one finished standalone rollback run.
func (m *Metrics) ObserveRollback(component string, status domain.Status) {
	if m == nil {
		return
	}

	m.RollbacksTotal.WithLabelValues(component, string(status)).Inc()
}

// ObserveHealthCheck records one health check and its result.
func (m *Metrics) ObserveHealthCheck(component string, healthy bool) {
	if m == nil {
		return
	}

	m.HealthChecksTotal.Inc()

	if !healthy {
		m.HealthCheckFailures.WithLabelValues(component).Inc()
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.UpgradesTotal.Describe(ch)
	m.UpgradeDuration.Describe(ch)
	m.RollbacksTotal.Describe(ch)
	m.HealthChecksTotal.Describe(ch)
	m.HealthCheckFailures.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.UpgradesTotal.Collect(ch)
	m.UpgradeDuration.Collect(ch)
	m.RollbacksTotal.Collect(ch)
	m.HealthChecksTotal.Collect(ch)
	m.HealthCheckFailures.Collect(ch)
}
