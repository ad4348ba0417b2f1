package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/node-sentinel/internal/config"
	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
)

// metadataFilename is the schema-validated record stored next to each snapshot.
const metadataFilename = "metadata.yaml"

// idTimeLayout is the timestamp embedded in backup ids.
const idTimeLayout = "20060102-150405"

var (
	// ErrNotFound is returned when no backup exists for the requested id.
	ErrNotFound = errors.New("backup not found")
	// errIDRequired is returned for records without an id.
	errIDRequired = errors.New("backup id must be set")
	// errComponentRequired is returned for records without a component.
	errComponentRequired = errors.New("backup component must be set")
	// errBinaryPathRequired is returned for records without a binary path.
	errBinaryPathRequired = errors.New("backup binary path must be set")
	// errServiceNameRequired is returned for records without a service name.
	errServiceNameRequired = errors.New("backup service name must be set")
	// errChecksumRequired is returned for persisted records without a checksum.
	errChecksumRequired = errors.New("backup checksum must be set")
)

// Store defines persistence operations for binary snapshots.
type Store interface {
	Create(ctx context.Context, record *domain.Backup, sourcePath string) error
	Load(ctx context.Context, id string) (*domain.Backup, error)
	List(ctx context.Context) ([]*domain.Backup, error)
	Latest(ctx context.Context, component string) (*domain.Backup, error)
	Delete(ctx context.Context, id string) error
	Prune(ctx context.Context, component string, keep int) ([]string, error)
	SnapshotPath(record *domain.Backup) string
}

// FileStore keeps one directory per backup id under a root directory. Each
// directory holds the binary snapshot (under its original base name) and a
// metadata.yaml record.
type FileStore struct {
	// root is the backup root directory.
	root string
	// mu protects concurrent access to the backup tree.
	mu sync.Mutex
}

// NewFileStore creates a store rooted at the provided directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root: filepath.Clean(root),
	}
}

// NewID derives a unique backup id from the component name and timestamp.
// The random suffix keeps ids unique even in rapid succession.
func NewID(component string, now time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]

	return fmt.Sprintf("%s-%s-%s", component, now.UTC().Format(idTimeLayout), suffix)
}

// Create copies the source binary into the store, records its SHA-256 on the
// record, and persists the metadata. The record's Checksum field is filled in
// by this call; every other field must already be set.
func (s *FileStore) Create(_ context.Context, record *domain.Backup, sourcePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateRecord(record, false); err != nil {
		return err
	}

	dir := filepath.Join(s.root, record.ID)

	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("create backup root: %w", err)
	}

	// Mkdir, not MkdirAll: an existing directory means an id collision.
	if err := os.Mkdir(dir, 0o750); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	checksum, err := s.copySnapshot(sourcePath, filepath.Join(dir, filepath.Base(record.BinaryPath)))
	if err != nil {
		// Leave no partial backup behind.
		_ = os.RemoveAll(dir)

		return err
	}

	record.Checksum = checksum

	data, err := yaml.Marshal(record)
	if err != nil {
		_ = os.RemoveAll(dir)

		return fmt.Errorf("encode backup metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, metadataFilename), data, config.DefaultFilePermissions); err != nil {
		_ = os.RemoveAll(dir)

		return fmt.Errorf("write backup metadata: %w", err)
	}

	return nil
}

// Load reads and validates the metadata record for the given id.
func (s *FileStore) Load(_ context.Context, id string) (*domain.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked(id)
}

// List returns every valid backup record, newest first.
func (s *FileStore) List(_ context.Context) ([]*domain.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listLocked()
}

// Latest returns the most recent backup for the component.
func (s *FileStore) Latest(_ context.Context, component string) (*domain.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.listLocked()
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.Component == component {
			return record, nil
		}
	}

	return nil, ErrNotFound
}

// Delete removes the backup directory for the given id.
func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, id)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}

		return fmt.Errorf("stat backup directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete backup directory: %w", err)
	}

	return nil
}

// Prune deletes all but the newest keep backups of the component and returns
// the ids it removed.
func (s *FileStore) Prune(_ context.Context, component string, keep int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.listLocked()
	if err != nil {
		return nil, err
	}

	var kept int

	var deleted []string

	for _, record := range records {
		if record.Component != component {
			continue
		}

		kept++
		if kept <= keep {
			continue
		}

		if err := os.RemoveAll(filepath.Join(s.root, record.ID)); err != nil {
			return deleted, fmt.Errorf("delete backup %s: %w", record.ID, err)
		}

		deleted = append(deleted, record.ID)
	}

	return deleted, nil
}

// SnapshotPath returns the location of the stored binary snapshot.
func (s *FileStore) SnapshotPath(record *domain.Backup) string {
	return filepath.Join(s.root, record.ID, filepath.Base(record.BinaryPath))
}

// loadLocked reads one record. Callers must hold the mutex.
func (s *FileStore) loadLocked(id string) (*domain.Backup, error) {
	contents, err := os.ReadFile(filepath.Clean(filepath.Join(s.root, id, metadataFilename)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read backup metadata: %w", err)
	}

	var record domain.Backup
	if err := yaml.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode backup metadata: %w", err)
	}

	if err := validateRecord(&record, true); err != nil {
		return nil, fmt.Errorf("backup %s: %w", id, err)
	}

	return &record, nil
}

// listLocked collects every loadable record, newest first, skipping entries
// with missing or invalid metadata. Callers must hold the mutex.
func (s *FileStore) listLocked() ([]*domain.Backup, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read backup root: %w", err)
	}

	records := make([]*domain.Backup, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		record, err := s.loadLocked(entry.Name())
		if err != nil {
			continue
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}

		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// copySnapshot copies the source binary byte-for-byte, preserving its file
// mode, and returns the hex SHA-256 of the copied bytes.
func (s *FileStore) copySnapshot(sourcePath, destPath string) (string, error) {
	source, err := os.Open(filepath.Clean(sourcePath))
	if err != nil {
		return "", fmt.Errorf("open source binary: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return "", fmt.Errorf("stat source binary: %w", err)
	}

	dest, err := os.OpenFile(filepath.Clean(destPath), os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer dest.Close()

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dest, hash), source); err != nil {
		return "", fmt.Errorf("copy snapshot: %w", err)
	}

	if err := dest.Sync(); err != nil {
		return "", fmt.Errorf("sync snapshot: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// validateRecord enforces the metadata schema. Checksum presence is only
// required once the record has been persisted.
func validateRecord(record *domain.Backup, persisted bool) error {
	switch {
	case record.ID == "":
		return errIDRequired
	case record.Component == "":
		return errComponentRequired
	case record.BinaryPath == "":
		return errBinaryPathRequired
	case record.ServiceName == "":
		return errServiceNameRequired
	}

	if persisted && record.Checksum == "" {
		return errChecksumRequired
	}

	return nil
}
