package rollback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
)

// fakeBackups records Restore calls.
type fakeBackups struct {
	restoreErr error
	restored   []*domain.Backup
}

func (f *fakeBackups) Create(_ context.Context, _ domain.Component) (*domain.Backup, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackups) Restore(_ context.Context, record *domain.Backup) error {
	f.restored = append(f.restored, record)

	return f.restoreErr
}

// fakeControl records the service names stop and start were asked for.
type fakeControl struct {
	stopErr  error
	startErr error
	stopped  []string
	started  []string
}

func (f *fakeControl) Stop(_ context.Context, component domain.Component) error {
	f.stopped = append(f.stopped, component.ServiceName)

	return f.stopErr
}

func (f *fakeControl) Start(_ context.Context, component domain.Component) error {
	f.started = append(f.started, component.ServiceName)

	return f.startErr
}

func gethRecord() *domain.Backup {
	return &domain.Backup{
		ID:          "geth-20250801-120000-abcd1234",
		Component:   "geth",
		BinaryPath:  "/usr/local/bin/geth",
		ServiceName: "geth-old.service",
		Version:     "1.15.0",
		Checksum:    "ab",
	}
}

func gethComponent() domain.Component {
	return domain.Component{
		Name:        "geth",
		BinaryPath:  "/usr/local/bin/geth",
		ServiceName: "geth.service",
	}
}

// TestRollback_HappyPath runs stop, restore, start in order, addressing the
// service the snapshot was taken from.
func TestRollback_HappyPath(t *testing.T) {
	t.Parallel()

	backups := &fakeBackups{}
	controller := &fakeControl{}
	service := New(backups, controller)

	require.NoError(t, service.Rollback(context.Background(), gethComponent(), gethRecord()))
	require.Equal(t, []string{"geth-old.service"}, controller.stopped)
	require.Len(t, backups.restored, 1)
	require.Equal(t, []string{"geth-old.service"}, controller.started)
}

// TestRollback_StopFailureIsBestEffort continues into restore when the stop
// fails.
func TestRollback_StopFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	backups := &fakeBackups{}
	controller := &fakeControl{stopErr: errors.New("service manager unreachable")}
	service := New(backups, controller)

	require.NoError(t, service.Rollback(context.Background(), gethComponent(), gethRecord()))
	require.Len(t, backups.restored, 1)
	require.Len(t, controller.started, 1)
}

// TestRollback_RestoreFailureIsFatal escalates a failed restore and never
// attempts the start.
func TestRollback_RestoreFailureIsFatal(t *testing.T) {
	t.Parallel()

	backups := &fakeBackups{restoreErr: errors.New("checksum mismatch")}
	controller := &fakeControl{}
	service := New(backups, controller)

	err := service.Rollback(context.Background(), gethComponent(), gethRecord())
	require.ErrorIs(t, err, domain.ErrRollbackFailed)
	require.Empty(t, controller.started)
}

// TestRollback_StartFailureIsFatal escalates when the restored service does
// not come back up.
func TestRollback_StartFailureIsFatal(t *testing.T) {
	t.Parallel()

	backups := &fakeBackups{}
	controller := &fakeControl{startErr: errors.New("unit failed")}
	service := New(backups, controller)

	err := service.Rollback(context.Background(), gethComponent(), gethRecord())
	require.ErrorIs(t, err, domain.ErrRollbackFailed)
	require.Len(t, backups.restored, 1)
}
