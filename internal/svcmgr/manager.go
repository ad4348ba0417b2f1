package svcmgr

import (
	"context"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/proc"
)

// Manager starts, stops, and inspects one supervised service. It mirrors the
// host's process supervisor: implementations only issue requests and report
// state; waiting for transitions is the service controller's job.
type Manager interface {
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	IsActive(ctx context.Context, name string) (bool, error)
}

// ForComponent returns the Manager implementation the component selects.
func ForComponent(component domain.Component, runner proc.Runner) Manager {
	if component.Manager == domain.ManagerProcess {
		return NewProcess(component.BinaryPath, component.EffectiveBinaryName())
	}

	return NewSystemd(runner)
}
