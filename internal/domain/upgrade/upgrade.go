package upgrade

import "time"

// Backup is a snapshot of a component binary captured before any destructive
// action. It is created exactly once per upgrade attempt and never mutated;
// deletion happens only through the explicit retention operation.
type Backup struct {
	// ID uniquely identifies the backup (component, UTC timestamp, random suffix).
	ID string `json:"id" yaml:"id"`
	// Component is the name of the component the snapshot belongs to.
	Component string `json:"component" yaml:"component"`
	// BinaryPath is the installed binary path the snapshot was taken from,
	// and the path a restore writes back to.
	BinaryPath string `json:"binary_path" yaml:"binary_path"`
	// ServiceName is the service to stop and start around a restore.
	ServiceName string `json:"service_name" yaml:"service_name"`
	// Version is the binary's self-reported version at capture time.
	Version string `json:"version" yaml:"version"`
	// Checksum is the hex SHA-256 of the snapshot, verified on restore.
	Checksum string `json:"checksum" yaml:"checksum"`
	// CreatedAt is the capture timestamp in UTC.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Request describes a single upgrade attempt. It is transient and scoped to
// one orchestration run.
type Request struct {
	// Component is the target component configuration.
	Component Component
	// TargetVersion is the version the component should end up running.
	TargetVersion string
	// Source optionally overrides the component's source template.
	Source string
}

// Status classifies how an orchestration run ended.
type Status string

const (
	// StatusSucceeded means the new version is live and verified.
	StatusSucceeded Status = "succeeded"
	// StatusRolledBack means the attempt failed and the previous binary was restored.
	StatusRolledBack Status = "rolled_back"
	// StatusFailed means the attempt failed with nothing restored, either
	// because nothing was touched yet or because rollback itself failed.
	StatusFailed Status = "failed"
)

// State identifies a stage of the upgrade state machine.
type State string

const (
	// StateIdle is the rest state before an upgrade begins.
	StateIdle State = "idle"
	// StateFetching covers downloading and staging the candidate binary.
	StateFetching State = "fetching"
	// StateBackingUp covers capturing the pre-upgrade snapshot.
	StateBackingUp State = "backing_up"
	// StateStopping covers stopping the supervised service.
	StateStopping State = "stopping"
	// StateReplacing covers swapping the staged binary over the active path.
	StateReplacing State = "replacing"
	// StateStarting covers starting the supervised service back up.
	StateStarting State = "starting"
	// StateVerifying covers the post-upgrade version and health checks.
	StateVerifying State = "verifying"
	// StateCompleted is the successful terminal state.
	StateCompleted State = "completed"
	// StateRollingBack covers restoring the pre-upgrade snapshot after a failure.
	StateRollingBack State = "rolling_back"
	// StateRolledBack is the terminal state after a successful restore.
	StateRolledBack State = "rolled_back"
	// StateFailed is the terminal state when nothing was restored.
	StateFailed State = "failed"
)

// Failure captures a classified error for outcomes and history records.
type Failure struct {
	// Kind is the stable machine-readable classification of the error.
	Kind FailureKind `json:"kind" yaml:"kind"`
	// Message is the human-readable error text.
	Message string `json:"message" yaml:"message"`
}

// Outcome is the result of one upgrade or rollback run. It is returned to the
// caller and appended verbatim to the history store.
type Outcome struct {
	// Component is the name of the component the run operated on.
	Component string `json:"component"`
	// Operation distinguishes upgrade runs from standalone rollbacks.
	Operation Operation `json:"operation"`
	// TargetVersion is the version the run was asked to reach (empty for rollbacks).
	TargetVersion string `json:"target_version,omitempty"`
	// Status classifies the terminal state of the run.
	Status Status `json:"status"`
	// ResultingVersion is the version probed after the run reached a terminal state.
	ResultingVersion string `json:"resulting_version,omitempty"`
	// BackupID references the snapshot captured or restored by the run, if any.
	BackupID string `json:"backup_id,omitempty"`
	// Failure is the error that ended the happy path, if any.
	Failure *Failure `json:"failure,omitempty"`
	// RollbackFailure is set when the rollback attempt itself failed.
	RollbackFailure *Failure `json:"rollback_failure,omitempty"`
	// StartedAt is when the run began, in UTC.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run reached a terminal state, in UTC.
	FinishedAt time.Time `json:"finished_at"`
}

// Operation names the kind of orchestration run recorded in an Outcome.
type Operation string

const (
	// OperationUpgrade is a full upgrade attempt.
	OperationUpgrade Operation = "upgrade"
	// OperationRollback is a standalone operator-invoked rollback.
	OperationRollback Operation = "rollback"
)
