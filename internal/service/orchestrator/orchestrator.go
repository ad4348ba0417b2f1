package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/metrics"
	"github.com/oshokin/node-sentinel/internal/proc"
	backuprepo "github.com/oshokin/node-sentinel/internal/repository/backup"
	"github.com/oshokin/node-sentinel/internal/repository/history"
	backupsvc "github.com/oshokin/node-sentinel/internal/service/backup"
	"github.com/oshokin/node-sentinel/internal/service/control"
	"github.com/oshokin/node-sentinel/internal/service/fetch"
	"github.com/oshokin/node-sentinel/internal/service/rollback"
	"github.com/oshokin/node-sentinel/internal/service/verify"
)

// Options wires the orchestrator's collaborators.
type Options struct {
	// Fetcher stages candidate binaries.
	Fetcher fetch.Fetcher
	// Backups captures and restores snapshots.
	Backups backupsvc.Manager
	// Control stops and starts supervised services.
	Control control.Controller
	// Verifier confirms the live version after a swap.
	Verifier verify.Verifier
	// Rollback restores a snapshot after a failed upgrade.
	Rollback rollback.Manager
	// Store resolves backup records for standalone rollbacks.
	Store backuprepo.Store
	// History records every terminal outcome.
	History history.Recorder
	// Metrics counts terminal outcomes. May be nil.
	Metrics *metrics.Metrics
	// Runner probes binary versions for outcome reporting.
	Runner proc.Runner
	// LockDir holds the per-component file locks. Empty disables file locking.
	LockDir string
	// ProbeTimeout bounds outcome-reporting version probes.
	ProbeTimeout time.Duration
}

// Service sequences upgrades and rollbacks through the component state
// machine, holding an exclusive per-component lock for the duration of a run.
type Service struct {
	options Options

	// mu guards the lock table.
	mu sync.Mutex
	// locks holds one in-process lock per component name.
	locks map[string]*sync.Mutex
}

// New creates an orchestrator.
func New(options Options) *Service {
	return &Service{
		options: options,
		locks:   make(map[string]*sync.Mutex),
	}
}

// upgradeRun carries the mutable state of one upgrade attempt between steps.
type upgradeRun struct {
	component domain.Component
	version   string
	source    string
	staged    *fetch.StagedBinary
	backup    *domain.Backup
}

// upgradeStep is one stage of the state machine. Steps from Stopping onward
// declare rollbackOnFailure: a backup exists and the live installation has
// been or is about to be touched, so failure triggers a restore.
type upgradeStep struct {
	state             domain.State
	rollbackOnFailure bool
	run               func(ctx context.Context, run *upgradeRun) error
}

// Upgrade replaces the component's binary with the requested version and
// returns the terminal outcome. The returned error is nil only when the
// outcome status is Succeeded; a second concurrent call for the same
// component fails immediately with ErrBusy.
//
// Cancellation is honored while fetching and backing up. Once the run enters
// Stopping the live installation is in flux, so the remaining steps run on a
// context detached from the caller's cancellation and always reach a
// terminal state.
func (s *Service) Upgrade(
	ctx context.Context,
	component domain.Component,
	version, source string,
) (*domain.Outcome, error) {
	release, err := s.acquire(component.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	outcome := &domain.Outcome{
		Component:     component.Name,
		Operation:     domain.OperationUpgrade,
		TargetVersion: version,
		StartedAt:     time.Now().UTC(),
	}

	run := &upgradeRun{
		component: component,
		version:   version,
		source:    source,
	}

	defer func() {
		if discardErr := run.staged.Discard(); discardErr != nil {
			logger.WarnKV(ctx, "Failed to remove staging directory", "error", discardErr)
		}
	}()

	logger.InfoKV(ctx, "Upgrade started",
		"component", component.Name,
		"target_version", version)

	err = s.executeSteps(ctx, run, outcome)
	s.finishUpgrade(ctx, run, outcome)

	return outcome, err
}

// executeSteps walks the state machine and settles the outcome status.
func (s *Service) executeSteps(ctx context.Context, run *upgradeRun, outcome *domain.Outcome) error {
	steps := []upgradeStep{
		{state: domain.StateFetching, rollbackOnFailure: false, run: s.stepFetch},
		{state: domain.StateBackingUp, rollbackOnFailure: false, run: s.stepBackup},
		{state: domain.StateStopping, rollbackOnFailure: true, run: s.stepStop},
		{state: domain.StateReplacing, rollbackOnFailure: true, run: s.stepReplace},
		{state: domain.StateStarting, rollbackOnFailure: true, run: s.stepStart},
		{state: domain.StateVerifying, rollbackOnFailure: true, run: s.stepVerify},
	}

	detached := false

	for _, step := range steps {
		if step.rollbackOnFailure && !detached {
			// Point of no return: from here the run must reach a terminal
			// state even if the caller goes away.
			ctx = context.WithoutCancel(ctx)
			detached = true
		}

		if !detached && ctx.Err() != nil {
			outcome.Status = domain.StatusFailed
			outcome.Failure = domain.NewFailure(ctx.Err())

			return ctx.Err()
		}

		logger.InfoKV(ctx, "State transition",
			"component", run.component.Name,
			"state", step.state)

		err := step.run(ctx, run)
		if err == nil {
			continue
		}

		outcome.Failure = domain.NewFailure(err)

		if !step.rollbackOnFailure {
			// No backup exists and nothing was touched.
			outcome.Status = domain.StatusFailed

			return err
		}

		return s.rollBackAfterFailure(ctx, run, outcome, err)
	}

	outcome.Status = domain.StatusSucceeded

	if run.backup != nil {
		outcome.BackupID = run.backup.ID
	}

	return nil
}

// rollBackAfterFailure restores the pre-upgrade snapshot after a failed step.
func (s *Service) rollBackAfterFailure(
	ctx context.Context,
	run *upgradeRun,
	outcome *domain.Outcome,
	cause error,
) error {
	logger.WarnKV(ctx, "State transition",
		"component", run.component.Name,
		"state", domain.StateRollingBack,
		"cause", cause)

	outcome.BackupID = run.backup.ID

	if rollbackErr := s.options.Rollback.Rollback(ctx, run.component, run.backup); rollbackErr != nil {
		outcome.Status = domain.StatusFailed
		outcome.RollbackFailure = domain.NewFailure(rollbackErr)

		logger.ErrorKV(ctx, "Rollback failed, manual intervention required",
			"component", run.component.Name,
			"backup_id", run.backup.ID,
			"error", rollbackErr)

		return rollbackErr
	}

	outcome.Status = domain.StatusRolledBack

	return cause
}

// finishUpgrade stamps the terminal outcome, records it, and counts it.
func (s *Service) finishUpgrade(ctx context.Context, run *upgradeRun, outcome *domain.Outcome) {
	outcome.FinishedAt = time.Now().UTC()
	outcome.ResultingVersion = s.probeResultingVersion(ctx, run.component)

	s.record(ctx, outcome)
	s.options.Metrics.ObserveUpgrade(outcome.Component, outcome.Status, outcome.FinishedAt.Sub(outcome.StartedAt))

	logger.InfoKV(ctx, "Upgrade finished",
		"component", outcome.Component,
		"status", outcome.Status,
		"resulting_version", outcome.ResultingVersion)
}

// stepFetch downloads and stages the candidate binary.
func (s *Service) stepFetch(ctx context.Context, run *upgradeRun) error {
	staged, err := s.options.Fetcher.Fetch(ctx, run.component, run.version, run.source)
	if err != nil {
		return err
	}

	run.staged = staged

	return nil
}

// stepBackup captures the pre-upgrade snapshot.
func (s *Service) stepBackup(ctx context.Context, run *upgradeRun) error {
	record, err := s.options.Backups.Create(ctx, run.component)
	if err != nil {
		return err
	}

	run.backup = record

	return nil
}

// stepStop brings the supervised service down.
func (s *Service) stepStop(ctx context.Context, run *upgradeRun) error {
	return s.options.Control.Stop(ctx, run.component)
}

// stepReplace applies the staged binary over the active path.
func (s *Service) stepReplace(_ context.Context, run *upgradeRun) error {
	if err := backupsvc.ApplyBinary(run.staged.Path, run.component.BinaryPath, run.staged.Checksum); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStagedBinary, err)
	}

	return nil
}

// stepStart brings the supervised service back up on the new binary.
func (s *Service) stepStart(ctx context.Context, run *upgradeRun) error {
	return s.options.Control.Start(ctx, run.component)
}

// stepVerify confirms the live binary reports the target version.
func (s *Service) stepVerify(ctx context.Context, run *upgradeRun) error {
	return s.options.Verifier.Verify(ctx, run.component, run.version)
}

// Rollback restores the component from the identified backup, or from its
// most recent one when backupID is empty. The restore sequence always runs to
// completion once started, detached from the caller's cancellation.
func (s *Service) Rollback(ctx context.Context, component domain.Component, backupID string) error {
	release, err := s.acquire(component.Name)
	if err != nil {
		return err
	}
	defer release()

	record, err := s.resolveBackup(ctx, component, backupID)
	if err != nil {
		return err
	}

	outcome := &domain.Outcome{
		Component: component.Name,
		Operation: domain.OperationRollback,
		BackupID:  record.ID,
		StartedAt: time.Now().UTC(),
	}

	detachedCtx := context.WithoutCancel(ctx)

	err = s.options.Rollback.Rollback(detachedCtx, component, record)
	if err != nil {
		outcome.Status = domain.StatusFailed
		outcome.Failure = domain.NewFailure(err)
	} else {
		outcome.Status = domain.StatusRolledBack
		outcome.ResultingVersion = record.Version
	}

	outcome.FinishedAt = time.Now().UTC()

	s.record(detachedCtx, outcome)
	s.options.Metrics.ObserveRollback(outcome.Component, outcome.Status)

	return err
}

// Backup captures a snapshot of the component's installed binary without
// upgrading anything. It takes the component lock so a capture can never
// observe a half-replaced binary.
func (s *Service) Backup(ctx context.Context, component domain.Component) (*domain.Backup, error) {
	release, err := s.acquire(component.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.options.Backups.Create(ctx, component)
}

// Verify checks the component's live binary against expectedVersion. An empty
// expectedVersion turns the call into a consistency check against whatever
// version the binary currently reports.
func (s *Service) Verify(ctx context.Context, component domain.Component, expectedVersion string) error {
	if expectedVersion == "" {
		current, err := proc.ProbeVersion(ctx, s.options.Runner, component.BinaryPath, s.options.ProbeTimeout)
		if err != nil {
			return fmt.Errorf("%w: %s", domain.ErrProbeFailed, err)
		}

		expectedVersion = current
	}

	return s.options.Verifier.Verify(ctx, component, expectedVersion)
}

// resolveBackup loads the requested backup record, defaulting to the newest
// one for the component.
func (s *Service) resolveBackup(
	ctx context.Context,
	component domain.Component,
	backupID string,
) (*domain.Backup, error) {
	if backupID == "" {
		record, err := s.options.Store.Latest(ctx, component.Name)
		if err != nil {
			return nil, fmt.Errorf("resolve latest backup for %s: %w", component.Name, err)
		}

		return record, nil
	}

	record, err := s.options.Store.Load(ctx, backupID)
	if err != nil {
		return nil, fmt.Errorf("load backup %s: %w", backupID, err)
	}

	return record, nil
}

// probeResultingVersion best-effort probes the live binary for outcome
// reporting. Failures are expected in failed terminal states.
func (s *Service) probeResultingVersion(ctx context.Context, component domain.Component) string {
	if s.options.Runner == nil {
		return ""
	}

	version, err := proc.ProbeVersion(ctx, s.options.Runner, component.BinaryPath, s.options.ProbeTimeout)
	if err != nil {
		logger.DebugKV(ctx, "Resulting version probe failed",
			"component", component.Name,
			"error", err)

		return ""
	}

	return version
}

// record appends the outcome to history. The run itself already reached a
// terminal state, so a recording failure is logged rather than escalated.
func (s *Service) record(ctx context.Context, outcome *domain.Outcome) {
	if err := s.options.History.Append(ctx, outcome); err != nil {
		logger.ErrorKV(ctx, "Failed to record outcome in history",
			"component", outcome.Component,
			"status", outcome.Status,
			"error", err)
	}
}

// acquire takes the component's exclusive lock: an in-process lock first,
// then a file lock shared with other sentinel processes on the host. The
// returned release function undoes both.
func (s *Service) acquire(name string) (func(), error) {
	s.mu.Lock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	s.mu.Unlock()

	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: %s", domain.ErrBusy, name)
	}

	if s.options.LockDir == "" {
		return lock.Unlock, nil
	}

	if err := os.MkdirAll(s.options.LockDir, 0o750); err != nil {
		lock.Unlock()

		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fileLock := flock.New(filepath.Join(s.options.LockDir, name+".lock"))

	locked, err := fileLock.TryLock()
	if err != nil {
		lock.Unlock()

		return nil, fmt.Errorf("acquire file lock for %s: %w", name, err)
	}

	if !locked {
		lock.Unlock()

		return nil, fmt.Errorf("%w: %s is locked by another process", domain.ErrBusy, name)
	}

	return func() {
		_ = fileLock.Unlock()

		lock.Unlock()
	}, nil
}
