package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/metrics"
	"github.com/oshokin/node-sentinel/internal/proc"
	"github.com/oshokin/node-sentinel/internal/svcmgr"
)

type (
	// Report is the outcome of one component health check. Message names the
	// first failing check, in the order the checks run.
	Report struct {
		Component     string `json:"component"`
		Healthy       bool   `json:"healthy"`
		ServiceActive bool   `json:"service_active"`
		BinaryPresent bool   `json:"binary_present"`
		Version       string `json:"version,omitempty"`
		RPCReachable  bool   `json:"rpc_reachable"`
		Message       string `json:"message,omitempty"`
	}

	// Checker inspects components without changing them.
	Checker interface {
		Check(ctx context.Context, component domain.Component) Report
		CheckAll(ctx context.Context, components []domain.Component) []Report
	}

	// Service implements Checker with the service manager, a filesystem
	// check, a version probe, and a GET against the component's RPC URL.
	Service struct {
		// managers resolves the service manager for a component.
		managers func(domain.Component) svcmgr.Manager
		// runner executes the version probe.
		runner proc.Runner
		// client performs the RPC reachability GET.
		client *http.Client
		// metrics receives check counts, may be nil.
		metrics *metrics.Metrics
		// probeTimeout bounds the version probe.
		probeTimeout time.Duration
	}
)

// New creates a health checker. The metrics receiver may be nil when checks
// should not be counted.
func New(runner proc.Runner, m *metrics.Metrics, probeTimeout, rpcTimeout time.Duration) *Service {
	return &Service{
		managers: func(component domain.Component) svcmgr.Manager {
			return svcmgr.ForComponent(component, runner)
		},
		runner:       runner,
		client:       &http.Client{Timeout: rpcTimeout},
		metrics:      m,
		probeTimeout: probeTimeout,
	}
}

// Check inspects one component. A component is healthy when its service is
// active, its binary exists, and its RPC endpoint answers; components without
// an RPC URL skip that last requirement. Failures to observe a check count
// against health rather than aborting it, so Check never returns an error.
func (s *Service) Check(ctx context.Context, component domain.Component) Report {
	report := Report{Component: component.Name}

	active, err := s.managers(component).IsActive(ctx, component.ServiceName)
	if err != nil {
		logger.WarnKV(ctx, "Service state query failed",
			"component", component.Name,
			"service", component.ServiceName,
			"error", err)
	}

	report.ServiceActive = active

	if _, err = os.Stat(component.BinaryPath); err == nil {
		report.BinaryPresent = true
	}

	if report.BinaryPresent {
		version, probeErr := proc.ProbeVersion(ctx, s.runner, component.BinaryPath, s.probeTimeout)
		if probeErr != nil {
			logger.DebugKV(ctx, "Version probe failed during health check",
				"component", component.Name,
				"error", probeErr)
		}

		report.Version = version
	}

	// The RPC endpoint is only consulted while the service runs; a stopped
	// service would fail both checks for one cause.
	if report.ServiceActive && component.HealthURL != "" {
		report.RPCReachable = s.rpcReachable(ctx, component)
	}

	report.Healthy = report.ServiceActive && report.BinaryPresent &&
		(component.HealthURL == "" || report.RPCReachable)
	report.Message = s.describe(component, report)

	s.metrics.ObserveHealthCheck(component.Name, report.Healthy)

	return report
}

// CheckAll inspects every component in order.
func (s *Service) CheckAll(ctx context.Context, components []domain.Component) []Report {
	reports := make([]Report, 0, len(components))

	for _, component := range components {
		reports = append(reports, s.Check(ctx, component))
	}

	return reports
}

// rpcReachable sends one GET to the component's RPC URL and accepts any
// non-5xx answer as proof of life.
func (s *Service) rpcReachable(ctx context.Context, component domain.Component) bool {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, component.HealthURL, http.NoBody)
	if err != nil {
		logger.WarnKV(ctx, "Invalid RPC health URL",
			"component", component.Name,
			"url", component.HealthURL,
			"error", err)

		return false
	}

	response, err := s.client.Do(request)
	if err != nil {
		logger.DebugKV(ctx, "RPC endpoint unreachable",
			"component", component.Name,
			"url", component.HealthURL,
			"error", err)

		return false
	}

	defer func() {
		_ = response.Body.Close()
	}()

	return response.StatusCode < http.StatusInternalServerError
}

// describe names the first failing check, mirroring the order Check runs them.
func (s *Service) describe(component domain.Component, report Report) string {
	switch {
	case !report.ServiceActive:
		return fmt.Sprintf("service %s is not active", component.ServiceName)
	case !report.BinaryPresent:
		return fmt.Sprintf("binary %s is missing", component.BinaryPath)
	case component.HealthURL != "" && !report.RPCReachable:
		return fmt.Sprintf("RPC endpoint %s is not responding", component.HealthURL)
	default:
		return ""
	}
}
