package svcmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/oshokin/node-sentinel/internal/proc"
)

// activeState is the systemd unit state reported for a running service.
const activeState = "active"

// Systemd drives services through systemctl.
type Systemd struct {
	runner proc.Runner
}

// NewSystemd returns a Manager backed by systemctl.
func NewSystemd(runner proc.Runner) *Systemd {
	return &Systemd{runner: runner}
}

// Start requests the unit to start.
func (s *Systemd) Start(ctx context.Context, name string) error {
	return s.systemctl(ctx, "start", name)
}

// Stop requests the unit to stop. Stopping an already stopped unit succeeds.
func (s *Systemd) Stop(ctx context.Context, name string) error {
	return s.systemctl(ctx, "stop", name)
}

// IsActive reports whether systemd considers the unit active.
func (s *Systemd) IsActive(ctx context.Context, name string) (bool, error) {
	result, err := s.runner.Run(ctx, "systemctl", "is-active", name)
	if err != nil {
		return false, fmt.Errorf("systemctl is-active %s: %w", name, err)
	}

	// is-active exits non-zero for every state but "active"; the printed
	// state is the authoritative answer.
	return strings.TrimSpace(result.Stdout) == activeState, nil
}

// systemctl runs one systemctl verb and treats a non-zero exit as failure.
func (s *Systemd) systemctl(ctx context.Context, verb, name string) error {
	result, err := s.runner.Run(ctx, "systemctl", verb, name)
	if err != nil {
		return fmt.Errorf("systemctl %s %s: %w", verb, name, err)
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("systemctl %s %s exited with status %d: %s",
			verb, name, result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	return nil
}
