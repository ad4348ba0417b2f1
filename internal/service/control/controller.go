package control

import (
	"context"
	"fmt"
	"time"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/proc"
	"github.com/oshokin/node-sentinel/internal/svcmgr"
)

// defaultPollInterval is how often the controller re-checks a stopping service.
const defaultPollInterval = time.Second

// Controller stops and starts supervised services around binary swaps. Both
// calls are synchronous; callers never overlap them for one service.
type Controller interface {
	Stop(ctx context.Context, component domain.Component) error
	Start(ctx context.Context, component domain.Component) error
}

// ManagerController drives components through their service managers.
type ManagerController struct {
	// managers resolves the service manager for a component.
	managers func(domain.Component) svcmgr.Manager
	// stopTimeout bounds how long Stop waits for the service to go inactive.
	stopTimeout time.Duration
	// settleDelay is how long Start waits before checking the service state.
	settleDelay time.Duration
	// pollInterval is the delay between stop polls.
	pollInterval time.Duration
}

// NewManagerController creates a controller with the given timing bounds.
func NewManagerController(runner proc.Runner, stopTimeout, settleDelay time.Duration) *ManagerController {
	return &ManagerController{
		managers: func(component domain.Component) svcmgr.Manager {
			return svcmgr.ForComponent(component, runner)
		},
		stopTimeout:  stopTimeout,
		settleDelay:  settleDelay,
		pollInterval: defaultPollInterval,
	}
}

// Stop requests a stop and polls until the service reports inactive, bounded
// by the stop timeout. An already-stopped service is not an error.
func (c *ManagerController) Stop(ctx context.Context, component domain.Component) error {
	manager := c.managers(component)

	active, err := manager.IsActive(ctx, component.ServiceName)
	if err != nil {
		return fmt.Errorf("query service state: %w", err)
	}

	if !active {
		logger.WarnKV(ctx, "Service already stopped",
			"component", component.Name,
			"service", component.ServiceName)

		return nil
	}

	if err = manager.Stop(ctx, component.ServiceName); err != nil {
		return fmt.Errorf("request service stop: %w", err)
	}

	for waited := time.Duration(0); waited < c.stopTimeout; waited += c.pollInterval {
		select {
		case <-ctx.Done():
			return fmt.Errorf("stop %s: %w", component.ServiceName, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		active, err = manager.IsActive(ctx, component.ServiceName)
		if err != nil {
			return fmt.Errorf("query service state: %w", err)
		}

		if !active {
			logger.InfoKV(ctx, "Service stopped",
				"component", component.Name,
				"service", component.ServiceName,
				"waited", waited+c.pollInterval)

			return nil
		}
	}

	return fmt.Errorf("%w: %s still active after %s",
		domain.ErrStopTimeout, component.ServiceName, c.stopTimeout)
}

// Start requests a start, waits the settle delay for process initialization,
// and checks the active state once.
func (c *ManagerController) Start(ctx context.Context, component domain.Component) error {
	manager := c.managers(component)

	if err := manager.Start(ctx, component.ServiceName); err != nil {
		return fmt.Errorf("request service start: %w", err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("start %s: %w", component.ServiceName, ctx.Err())
	case <-time.After(c.settleDelay):
	}

	active, err := manager.IsActive(ctx, component.ServiceName)
	if err != nil {
		return fmt.Errorf("query service state: %w", err)
	}

	if !active {
		return fmt.Errorf("%w: %s not active %s after start",
			domain.ErrStartTimeout, component.ServiceName, c.settleDelay)
	}

	logger.InfoKV(ctx, "Service started",
		"component", component.Name,
		"service", component.ServiceName)

	return nil
}
