package verify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/proc"
)

// Verifier confirms the live binary reports the expected version.
type Verifier interface {
	Verify(ctx context.Context, component domain.Component, expectedVersion string) error
}

// Service implements Verifier with a version probe plus an advisory health
// query against the component's RPC endpoint.
type Service struct {
	// runner executes the version probe.
	runner proc.Runner
	// client performs the advisory health GET.
	client *http.Client
	// probeTimeout bounds the version probe.
	probeTimeout time.Duration
}

// New creates a verifier with the given timing bounds.
func New(runner proc.Runner, probeTimeout, healthTimeout time.Duration) *Service {
	return &Service{
		runner: runner,
		client: &http.Client{
			Timeout: healthTimeout,
		},
		probeTimeout: probeTimeout,
	}
}

// Verify probes the installed binary and matches the reported version against
// the expected one. Node binaries decorate their version output with build
// metadata, so matching is by substring, not equality. The health endpoint is
// queried as well, but a non-responsive endpoint only logs a warning: nodes
// routinely take longer to open their RPC port than to report a version.
func (s *Service) Verify(ctx context.Context, component domain.Component, expectedVersion string) error {
	reported, err := proc.ProbeVersion(ctx, s.runner, component.BinaryPath, s.probeTimeout)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrProbeFailed, err)
	}

	if !Matches(reported, expectedVersion) {
		return fmt.Errorf("%w: component %s reports %q, expected %q",
			domain.ErrVersionMismatch, component.Name, reported, expectedVersion)
	}

	s.checkHealth(ctx, component)

	logger.InfoKV(ctx, "Version verified",
		"component", component.Name,
		"version", reported,
		"expected", expectedVersion)

	return nil
}

// checkHealth queries the component's health URL. Advisory only.
func (s *Service) checkHealth(ctx context.Context, component domain.Component) {
	if component.HealthURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, component.HealthURL, nil)
	if err != nil {
		logger.WarnKV(ctx, "Invalid health URL",
			"component", component.Name,
			"url", component.HealthURL,
			"error", err)

		return
	}

	resp, err := s.client.Do(req)
	if err != nil {
		logger.WarnKV(ctx, "Health endpoint not responding",
			"component", component.Name,
			"url", component.HealthURL,
			"error", err)

		return
	}

	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		logger.WarnKV(ctx, "Health endpoint returned an error status",
			"component", component.Name,
			"url", component.HealthURL,
			"status", resp.Status)

		return
	}

	logger.DebugKV(ctx, "Health endpoint responded",
		"component", component.Name,
		"status", resp.Status)
}

// Matches reports whether the probed version output contains the expected
// version, ignoring case and a leading "v" on either side.
func Matches(reported, expected string) bool {
	reported = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(reported)), "v")
	expected = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(expected)), "v")

	if expected == "" {
		return false
	}

	return strings.Contains(reported, expected)
}
