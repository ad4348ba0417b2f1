package upgrade

import "errors"

// Sentinel errors classifying every way an orchestration run can go wrong.
// Callers wrap them with fmt.Errorf("...: %w", ...) and classify with errors.Is.
var (
	// ErrBackupFailed means the pre-upgrade snapshot could not be captured.
	ErrBackupFailed = errors.New("backup capture failed")
	// ErrRestoreFailed means a snapshot could not be written back over the binary.
	ErrRestoreFailed = errors.New("backup restore failed")
	// ErrDownloadFailed means the release archive could not be downloaded.
	ErrDownloadFailed = errors.New("binary download failed")
	// ErrExtractFailed means the archive was malformed or held no matching binary.
	ErrExtractFailed = errors.New("archive extraction failed")
	// ErrStagedBinary means the staged binary is present but not runnable.
	ErrStagedBinary = errors.New("staged binary failed validation")
	// ErrStopTimeout means the service stayed active past the stop deadline.
	ErrStopTimeout = errors.New("service did not stop in time")
	// ErrStartTimeout means the service was not active after the settle delay.
	ErrStartTimeout = errors.New("service did not become active")
	// ErrVersionMismatch means the live binary does not report the target version.
	ErrVersionMismatch = errors.New("running version does not match the target")
	// ErrProbeFailed means the version probe could not be executed.
	ErrProbeFailed = errors.New("version probe failed")
	// ErrRollbackFailed means a rollback did not restore the component.
	// It is the single fatal condition and is never retried automatically.
	ErrRollbackFailed = errors.New("rollback failed")
	// ErrBusy rejects a second concurrent run for the same component.
	ErrBusy = errors.New("component is already being upgraded")
)

// FailureKind is the stable classification recorded in outcomes and history.
type FailureKind string

// Failure kinds, one per sentinel error.
const (
	KindBackup          FailureKind = "backup"
	KindRestore         FailureKind = "restore"
	KindDownload        FailureKind = "download"
	KindExtract         FailureKind = "extract"
	KindStagedBinary    FailureKind = "staged_binary"
	KindStopTimeout     FailureKind = "stop_timeout"
	KindStartTimeout    FailureKind = "start_timeout"
	KindVersionMismatch FailureKind = "version_mismatch"
	KindProbe           FailureKind = "probe"
	KindRollback        FailureKind = "rollback"
	KindBusy            FailureKind = "busy"
	KindUnknown         FailureKind = "unknown"
)

// FailureKindOf maps a wrapped error chain to its classification.
// Rollback takes precedence so an escalated failure keeps its fatal kind.
func FailureKindOf(err error) FailureKind {
	switch {
	case errors.Is(err, ErrRollbackFailed):
		return KindRollback
	case errors.Is(err, ErrBackupFailed):
		return KindBackup
	case errors.Is(err, ErrRestoreFailed):
		return KindRestore
	case errors.Is(err, ErrDownloadFailed):
		return KindDownload
	case errors.Is(err, ErrExtractFailed):
		return KindExtract
	case errors.Is(err, ErrStagedBinary):
		return KindStagedBinary
	case errors.Is(err, ErrStopTimeout):
		return KindStopTimeout
	case errors.Is(err, ErrStartTimeout):
		return KindStartTimeout
	case errors.Is(err, ErrVersionMismatch):
		return KindVersionMismatch
	case errors.Is(err, ErrProbeFailed):
		return KindProbe
	case errors.Is(err, ErrBusy):
		return KindBusy
	default:
		return KindUnknown
	}
}

// NewFailure builds a Failure from a classified error. Returns nil for nil.
func NewFailure(err error) *Failure {
	if err == nil {
		return nil
	}

	return &Failure{
		Kind:    FailureKindOf(err),
		Message: err.Error(),
	}
}
