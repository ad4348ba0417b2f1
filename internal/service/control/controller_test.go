package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/svcmgr"
)

// fakeManager scripts IsActive responses and records control calls.
type fakeManager struct {
	activeSequence []bool
	activeErr      error
	stopErr        error
	startErr       error
	stops          int
	starts         int
	activeCalls    int
}

func (m *fakeManager) Start(_ context.Context, _ string) error {
	m.starts++

	return m.startErr
}

func (m *fakeManager) Stop(_ context.Context, _ string) error {
	m.stops++

	return m.stopErr
}

func (m *fakeManager) IsActive(_ context.Context, _ string) (bool, error) {
	if m.activeErr != nil {
		return false, m.activeErr
	}

	index := m.activeCalls
	m.activeCalls++

	if index >= len(m.activeSequence) {
		return m.activeSequence[len(m.activeSequence)-1], nil
	}

	return m.activeSequence[index], nil
}

// newTestController wires a controller to the fake with fast timings.
func newTestController(manager svcmgr.Manager, stopTimeout, settleDelay time.Duration) *ManagerController {
	return &ManagerController{
		managers:     func(domain.Component) svcmgr.Manager { return manager },
		stopTimeout:  stopTimeout,
		settleDelay:  settleDelay,
		pollInterval: 5 * time.Millisecond,
	}
}

func testComponent() domain.Component {
	return domain.Component{
		Name:        "geth",
		BinaryPath:  "/usr/local/bin/geth",
		ServiceName: "geth.service",
	}
}

// TestStop_WaitsUntilInactive covers the poll loop reaching inactive.
func TestStop_WaitsUntilInactive(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{activeSequence: []bool{true, true, false}}
	controller := newTestController(manager, time.Second, time.Millisecond)

	require.NoError(t, controller.Stop(context.Background(), testComponent()))
	require.Equal(t, 1, manager.stops)
}

// TestStop_AlreadyStopped returns nil without requesting a stop.
func TestStop_AlreadyStopped(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{activeSequence: []bool{false}}
	controller := newTestController(manager, time.Second, time.Millisecond)

	require.NoError(t, controller.Stop(context.Background(), testComponent()))
	require.Zero(t, manager.stops)
}

// TestStop_Timeout classifies a service that never goes inactive.
func TestStop_Timeout(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{activeSequence: []bool{true}}
	controller := newTestController(manager, 20*time.Millisecond, time.Millisecond)

	err := controller.Stop(context.Background(), testComponent())
	require.ErrorIs(t, err, domain.ErrStopTimeout)
	require.Equal(t, 1, manager.stops)
}

// TestStop_ManagerError passes service manager failures through unclassified.
func TestStop_ManagerError(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{activeErr: errors.New("systemctl not found")}
	controller := newTestController(manager, time.Second, time.Millisecond)

	err := controller.Stop(context.Background(), testComponent())
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrStopTimeout)
}

// TestStart_ActiveAfterSettle covers the happy start path.
func TestStart_ActiveAfterSettle(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{activeSequence: []bool{true}}
	controller := newTestController(manager, time.Second, time.Millisecond)

	require.NoError(t, controller.Start(context.Background(), testComponent()))
	require.Equal(t, 1, manager.starts)
}

// TestStart_NotActive classifies a service that did not come up.
func TestStart_NotActive(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{activeSequence: []bool{false}}
	controller := newTestController(manager, time.Second, time.Millisecond)

	err := controller.Start(context.Background(), testComponent())
	require.ErrorIs(t, err, domain.ErrStartTimeout)
}

// TestStart_RequestFails passes start request failures through unclassified.
func TestStart_RequestFails(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{startErr: errors.New("unit not found")}
	controller := newTestController(manager, time.Second, time.Millisecond)

	err := controller.Start(context.Background(), testComponent())
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrStartTimeout)
}
