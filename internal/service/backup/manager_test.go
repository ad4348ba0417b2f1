package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/proc"
	repo "github.com/oshokin/node-sentinel/internal/repository/backup"
)

// fakeRunner plays back a canned version probe result.
type fakeRunner struct {
	output string
	err    error
}

func (r *fakeRunner) Run(_ context.Context, _ string, _ ...string) (proc.Result, error) {
	if r.err != nil {
		return proc.Result{}, r.err
	}

	return proc.Result{Stdout: r.output}, nil
}

// writeBinary creates an installed binary inside its own directory so the
// atomic swap has a directory to work in.
func writeBinary(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "geth")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o755))

	return path
}

func managedComponent(binaryPath string) domain.Component {
	return domain.Component{
		Name:        "geth",
		BinaryPath:  binaryPath,
		ServiceName: "geth.service",
	}
}

// TestFileManager_Create verifies a capture records version, checksum, and a
// byte-identical snapshot.
func TestFileManager_Create(t *testing.T) {
	t.Parallel()

	store := repo.NewFileStore(filepath.Join(t.TempDir(), "backups"))
	manager := NewFileManager(store, &fakeRunner{output: "1.15.0-stable"}, time.Second)

	active := writeBinary(t, "old geth binary")

	record, err := manager.Create(context.Background(), managedComponent(active))
	require.NoError(t, err)
	require.Equal(t, "geth", record.Component)
	require.Equal(t, "1.15.0-stable", record.Version)
	require.Equal(t, active, record.BinaryPath)

	sum := sha256.Sum256([]byte("old geth binary"))
	require.Equal(t, hex.EncodeToString(sum[:]), record.Checksum)

	stored, err := store.Load(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, record.Checksum, stored.Checksum)

	snapshot, err := os.ReadFile(store.SnapshotPath(record))
	require.NoError(t, err)
	require.Equal(t, "old geth binary", string(snapshot))
}

// TestFileManager_Create_ProbeFailure ensures a binary that cannot report its
// version is still captured, with the version left empty.
func TestFileManager_Create_ProbeFailure(t *testing.T) {
	t.Parallel()

	store := repo.NewFileStore(filepath.Join(t.TempDir(), "backups"))
	manager := NewFileManager(store, &fakeRunner{err: errors.New("exec format error")}, time.Second)

	active := writeBinary(t, "unrunnable binary")

	record, err := manager.Create(context.Background(), managedComponent(active))
	require.NoError(t, err)
	require.Empty(t, record.Version)
	require.NotEmpty(t, record.Checksum)
}

// TestFileManager_Create_MissingSource classifies an absent installed binary
// as a backup failure.
func TestFileManager_Create_MissingSource(t *testing.T) {
	t.Parallel()

	store := repo.NewFileStore(filepath.Join(t.TempDir(), "backups"))
	manager := NewFileManager(store, &fakeRunner{err: errors.New("no such file")}, time.Second)

	missing := filepath.Join(t.TempDir(), "geth")

	_, err := manager.Create(context.Background(), managedComponent(missing))
	require.ErrorIs(t, err, domain.ErrBackupFailed)
}

// TestFileManager_Restore brings the active binary back to the snapshot bytes
// with the executable mode set and no .old leftover.
func TestFileManager_Restore(t *testing.T) {
	t.Parallel()

	store := repo.NewFileStore(filepath.Join(t.TempDir(), "backups"))
	manager := NewFileManager(store, &fakeRunner{output: "1.15.0"}, time.Second)

	active := writeBinary(t, "old geth binary")

	record, err := manager.Create(context.Background(), managedComponent(active))
	require.NoError(t, err)

	// Simulate a bad upgrade overwriting the active binary.
	require.NoError(t, os.WriteFile(active, []byte("broken new binary"), 0o755))

	require.NoError(t, manager.Restore(context.Background(), record))

	contents, err := os.ReadFile(active)
	require.NoError(t, err)
	require.Equal(t, "old geth binary", string(contents))

	info, err := os.Stat(active)
	require.NoError(t, err)
	require.Equal(t, DefaultBinaryMode, info.Mode().Perm())

	_, err = os.Stat(active + ".old")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestFileManager_Restore_Idempotent allows restoring the same backup twice.
func TestFileManager_Restore_Idempotent(t *testing.T) {
	t.Parallel()

	store := repo.NewFileStore(filepath.Join(t.TempDir(), "backups"))
	manager := NewFileManager(store, &fakeRunner{output: "1.15.0"}, time.Second)

	active := writeBinary(t, "old geth binary")

	record, err := manager.Create(context.Background(), managedComponent(active))
	require.NoError(t, err)

	require.NoError(t, manager.Restore(context.Background(), record))
	require.NoError(t, manager.Restore(context.Background(), record))

	contents, err := os.ReadFile(active)
	require.NoError(t, err)
	require.Equal(t, "old geth binary", string(contents))
}

// TestFileManager_Restore_MissingArtifact classifies an absent snapshot as a
// restore failure.
func TestFileManager_Restore_MissingArtifact(t *testing.T) {
	t.Parallel()

	store := repo.NewFileStore(filepath.Join(t.TempDir(), "backups"))
	manager := NewFileManager(store, &fakeRunner{}, time.Second)

	record := &domain.Backup{
		ID:          "geth-20250801-120000-deadbeef",
		Component:   "geth",
		BinaryPath:  filepath.Join(t.TempDir(), "geth"),
		ServiceName: "geth.service",
		Checksum:    "00",
	}

	require.ErrorIs(t, manager.Restore(context.Background(), record), domain.ErrRestoreFailed)
}

// TestFileManager_Restore_ChecksumMismatch refuses to apply a corrupted
// snapshot and leaves the active binary alone.
func TestFileManager_Restore_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	store := repo.NewFileStore(filepath.Join(t.TempDir(), "backups"))
	manager := NewFileManager(store, &fakeRunner{output: "1.15.0"}, time.Second)

	active := writeBinary(t, "old geth binary")

	record, err := manager.Create(context.Background(), managedComponent(active))
	require.NoError(t, err)

	// Corrupt the stored snapshot after capture.
	require.NoError(t, os.WriteFile(store.SnapshotPath(record), []byte("tampered"), 0o755))
	require.NoError(t, os.WriteFile(active, []byte("current binary"), 0o755))

	require.ErrorIs(t, manager.Restore(context.Background(), record), domain.ErrRestoreFailed)

	contents, err := os.ReadFile(active)
	require.NoError(t, err)
	require.Equal(t, "current binary", string(contents))
}

// TestApplyBinary_NoChecksum applies a payload without verification, creating
// the target when it does not exist yet.
func TestApplyBinary_NoChecksum(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "staged")
	target := filepath.Join(dir, "installed")
	require.NoError(t, os.WriteFile(source, []byte("payload"), 0o755))

	require.NoError(t, ApplyBinary(source, target, ""))

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "payload", string(contents))
}
