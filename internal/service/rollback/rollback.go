package rollback

import (
	"context"
	"fmt"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	backupsvc "github.com/oshokin/node-sentinel/internal/service/backup"
	"github.com/oshokin/node-sentinel/internal/service/control"
)

// Manager restores a component to a previously captured snapshot.
type Manager interface {
	Rollback(ctx context.Context, component domain.Component, record *domain.Backup) error
}

// Service implements Manager as a fixed sequence with per-step failure
// policy: stop is best-effort, restore and start must succeed.
type Service struct {
	// backups restores snapshots over the active binary.
	backups backupsvc.Manager
	// control stops and starts the supervised service.
	control control.Controller
}

// New creates a rollback manager.
func New(backups backupsvc.Manager, controller control.Controller) *Service {
	return &Service{
		backups: backups,
		control: controller,
	}
}

// step is one stage of the rollback sequence with its declared failure policy.
type step struct {
	name        string
	mustSucceed bool
	run         func(context.Context) error
}

// Rollback stops the service, restores the snapshot, and starts the service
// again. The stop is best-effort because the service may already be down or
// half-dead after the failure that triggered the rollback. Any must-succeed
// step failure escalates wrapping ErrRollbackFailed, the single fatal
// condition, which is never retried automatically.
func (s *Service) Rollback(ctx context.Context, component domain.Component, record *domain.Backup) error {
	// The record, not the current configuration, names the binary path and
	// service the snapshot belongs to.
	target := component
	target.BinaryPath = record.BinaryPath
	target.ServiceName = record.ServiceName

	logger.InfoKV(ctx, "Rolling back",
		"component", component.Name,
		"backup_id", record.ID,
		"version", record.Version)

	steps := []step{
		{
			name:        "stop service",
			mustSucceed: false,
			run: func(ctx context.Context) error {
				return s.control.Stop(ctx, target)
			},
		},
		{
			name:        "restore binary",
			mustSucceed: true,
			run: func(ctx context.Context) error {
				return s.backups.Restore(ctx, record)
			},
		},
		{
			name:        "start service",
			mustSucceed: true,
			run: func(ctx context.Context) error {
				return s.control.Start(ctx, target)
			},
		},
	}

	for _, current := range steps {
		err := current.run(ctx)
		if err == nil {
			continue
		}

		if !current.mustSucceed {
			logger.WarnKV(ctx, "Best-effort rollback step failed, continuing",
				"component", component.Name,
				"step", current.name,
				"error", err)

			continue
		}

		return fmt.Errorf("%w: %s: %s", domain.ErrRollbackFailed, current.name, err)
	}

	logger.InfoKV(ctx, "Rollback completed",
		"component", component.Name,
		"backup_id", record.ID,
		"version", record.Version)

	return nil
}
