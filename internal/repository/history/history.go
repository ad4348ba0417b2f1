package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/node-sentinel/internal/config"
	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
)

// Recorder defines persistence operations for upgrade and rollback outcomes.
type Recorder interface {
	Append(ctx context.Context, outcome *domain.Outcome) error
	List(ctx context.Context, limit int) ([]*domain.Outcome, error)
}

// FileRecorder persists outcomes to a JSON file on disk. The file holds an
// array ordered oldest first; an absent file simply means no runs yet.
type FileRecorder struct {
	// path is the filesystem location of the JSON history file.
	path string
	// mu protects concurrent access to the history file.
	mu sync.Mutex
}

// NewFileRecorder creates a recorder that reads/writes JSON at the provided path.
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{
		path: filepath.Clean(path),
	}
}

// Append adds one outcome to the end of the history file.
func (r *FileRecorder) Append(_ context.Context, outcome *domain.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcomes, err := r.readLocked()
	if err != nil {
		// Never clobber a history file that failed to decode.
		return err
	}

	outcomes = append(outcomes, outcome)

	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}

	return nil
}

// List returns recorded outcomes, newest first. A limit above zero caps the
// number of entries returned.
func (r *FileRecorder) List(_ context.Context, limit int) ([]*domain.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcomes, err := r.readLocked()
	if err != nil {
		return nil, err
	}

	reversed := make([]*domain.Outcome, 0, len(outcomes))
	for i := len(outcomes) - 1; i >= 0; i-- {
		reversed = append(reversed, outcomes[i])
	}

	if limit > 0 && len(reversed) > limit {
		reversed = reversed[:limit]
	}

	return reversed, nil
}

// readLocked loads the full history, oldest first. Callers must hold the mutex.
func (r *FileRecorder) readLocked() ([]*domain.Outcome, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read history file: %w", err)
	}

	var outcomes []*domain.Outcome
	if err = json.Unmarshal(contents, &outcomes); err != nil {
		return nil, fmt.Errorf("decode history file: %w", err)
	}

	return outcomes, nil
}
