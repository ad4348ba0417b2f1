package backup

import (
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/proc"
	repo "github.com/oshokin/node-sentinel/internal/repository/backup"

	// Ensure SHA256 is available for checksum verification.
	_ "crypto/sha256"
)

const (
	// DefaultBinaryMode is applied to binaries written over the active path.
	DefaultBinaryMode os.FileMode = 0o755

	// checksumFunction verifies payloads applied over the active path.
	checksumFunction crypto.Hash = crypto.SHA256
)

// Manager captures and restores binary snapshots. A snapshot is always taken
// before any destructive action and is the sole source a restore works from.
type Manager interface {
	Create(ctx context.Context, component domain.Component) (*domain.Backup, error)
	Restore(ctx context.Context, record *domain.Backup) error
}

// FileManager implements Manager on top of the file-backed backup store.
type FileManager struct {
	// store persists snapshots and their metadata.
	store repo.Store
	// runner executes the version probe against the installed binary.
	runner proc.Runner
	// probeTimeout bounds the capture-time version probe.
	probeTimeout time.Duration
}

// NewFileManager creates a manager backed by the provided store.
func NewFileManager(store repo.Store, runner proc.Runner, probeTimeout time.Duration) *FileManager {
	return &FileManager{
		store:        store,
		runner:       runner,
		probeTimeout: probeTimeout,
	}
}

// Create captures a byte-for-byte snapshot of the component's installed
// binary together with its self-reported version, checksum, and timestamp.
// A failed version probe is recorded as an empty version rather than blocking
// the capture: the snapshot exists to preserve bytes, and upgrades must be
// able to replace a binary that no longer runs.
func (m *FileManager) Create(ctx context.Context, component domain.Component) (*domain.Backup, error) {
	currentVersion, err := proc.ProbeVersion(ctx, m.runner, component.BinaryPath, m.probeTimeout)
	if err != nil {
		logger.WarnKV(ctx, "Installed binary did not report a version, capturing anyway",
			"component", component.Name,
			"error", err)

		currentVersion = ""
	}

	now := time.Now().UTC()
	record := &domain.Backup{
		ID:          repo.NewID(component.Name, now),
		Component:   component.Name,
		BinaryPath:  component.BinaryPath,
		ServiceName: component.ServiceName,
		Version:     currentVersion,
		CreatedAt:   now,
	}

	if err = m.store.Create(ctx, record, component.BinaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBackupFailed, err)
	}

	logger.InfoKV(ctx, "Backup captured",
		"component", component.Name,
		"backup_id", record.ID,
		"version", record.Version,
		"checksum", record.Checksum)

	return record, nil
}

// Restore writes the snapshot back over the component's active binary path,
// atomically and with the recorded checksum verified on the way. Callers
// treat a restore failure as fatal.
func (m *FileManager) Restore(ctx context.Context, record *domain.Backup) error {
	snapshotPath := m.store.SnapshotPath(record)

	if err := ApplyBinary(snapshotPath, record.BinaryPath, record.Checksum); err != nil {
		return fmt.Errorf("%w: backup %s: %s", domain.ErrRestoreFailed, record.ID, err)
	}

	logger.InfoKV(ctx, "Binary restored from backup",
		"component", record.Component,
		"backup_id", record.ID,
		"version", record.Version,
		"path", record.BinaryPath)

	return nil
}

// ApplyBinary writes the payload at sourcePath over targetPath atomically
// (write-to-temp plus rename) and restores the executable mode. A non-empty
// checksumHex is the expected hex SHA-256 of the payload and is verified
// before the swap.
func ApplyBinary(sourcePath, targetPath, checksumHex string) error {
	data, err := os.ReadFile(filepath.Clean(sourcePath))
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	options := goupdate.Options{
		TargetPath: targetPath,
		TargetMode: DefaultBinaryMode,
	}

	if checksumHex != "" {
		checksum, decodeErr := hex.DecodeString(checksumHex)
		if decodeErr != nil {
			return fmt.Errorf("decode checksum: %w", decodeErr)
		}

		options.Checksum = checksum
		options.Hash = checksumFunction
	}

	// go-update swaps via rename and needs an existing target file.
	if _, statErr := os.Stat(targetPath); os.IsNotExist(statErr) {
		file, createErr := os.Create(filepath.Clean(targetPath))
		if createErr != nil {
			return fmt.Errorf("create target: %w", createErr)
		}

		_ = file.Close()
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("apply binary: %w", err)
	}

	// go-update leaves the previous binary behind as .old.
	oldPath := targetPath + ".old"
	if _, err = os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	return nil
}
