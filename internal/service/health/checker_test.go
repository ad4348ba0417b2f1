package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/metrics"
	"github.com/oshokin/node-sentinel/internal/proc"
	"github.com/oshokin/node-sentinel/internal/svcmgr"
)

// fakeManager plays back a fixed service state.
type fakeManager struct {
	active    bool
	activeErr error
}

func (m *fakeManager) Start(_ context.Context, _ string) error { return nil }

func (m *fakeManager) Stop(_ context.Context, _ string) error { return nil }

func (m *fakeManager) IsActive(_ context.Context, _ string) (bool, error) {
	return m.active, m.activeErr
}

// fakeRunner plays back a canned version probe result.
type fakeRunner struct {
	output   string
	exitCode int
	err      error
}

func (r *fakeRunner) Run(_ context.Context, _ string, _ ...string) (proc.Result, error) {
	if r.err != nil {
		return proc.Result{}, r.err
	}

	return proc.Result{ExitCode: r.exitCode, Stdout: r.output}, nil
}

// newTestChecker wires a checker to the fakes with fast timings.
func newTestChecker(manager svcmgr.Manager, runner proc.Runner, m *metrics.Metrics) *Service {
	return &Service{
		managers:     func(domain.Component) svcmgr.Manager { return manager },
		runner:       runner,
		client:       &http.Client{Timeout: time.Second},
		metrics:      m,
		probeTimeout: time.Second,
	}
}

// writeBinary drops a stand-in binary file and returns its path.
func writeBinary(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "geth")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o755))

	return path
}

func TestCheck_Healthy(t *testing.T) {
	t.Parallel()

	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(rpc.Close)

	checker := newTestChecker(&fakeManager{active: true}, &fakeRunner{output: "1.16.0"}, nil)

	report := checker.Check(context.Background(), domain.Component{
		Name:        "geth",
		BinaryPath:  writeBinary(t),
		ServiceName: "geth.service",
		HealthURL:   rpc.URL,
	})

	require.True(t, report.Healthy)
	require.True(t, report.ServiceActive)
	require.True(t, report.BinaryPresent)
	require.True(t, report.RPCReachable)
	require.Equal(t, "1.16.0", report.Version)
	require.Empty(t, report.Message)
}

func TestCheck_ServiceDown(t *testing.T) {
	t.Parallel()

	checker := newTestChecker(&fakeManager{active: false}, &fakeRunner{output: "1.16.0"}, nil)

	report := checker.Check(context.Background(), domain.Component{
		Name:        "geth",
		BinaryPath:  writeBinary(t),
		ServiceName: "geth.service",
		HealthURL:   "http://127.0.0.1:1/",
	})

	require.False(t, report.Healthy)
	require.False(t, report.ServiceActive)
	require.True(t, report.BinaryPresent)
	// The RPC endpoint is not consulted for a stopped service.
	require.False(t, report.RPCReachable)
	require.Equal(t, "service geth.service is not active", report.Message)
}

func TestCheck_BinaryMissing(t *testing.T) {
	t.Parallel()

	checker := newTestChecker(&fakeManager{active: true}, &fakeRunner{output: "1.16.0"}, nil)

	report := checker.Check(context.Background(), domain.Component{
		Name:        "geth",
		BinaryPath:  filepath.Join(t.TempDir(), "absent"),
		ServiceName: "geth.service",
	})

	require.False(t, report.Healthy)
	require.False(t, report.BinaryPresent)
	require.Empty(t, report.Version)
	require.Contains(t, report.Message, "is missing")
}

func TestCheck_RPCUnreachable(t *testing.T) {
	t.Parallel()

	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(rpc.Close)

	checker := newTestChecker(&fakeManager{active: true}, &fakeRunner{output: "1.16.0"}, nil)

	report := checker.Check(context.Background(), domain.Component{
		Name:        "geth",
		BinaryPath:  writeBinary(t),
		ServiceName: "geth.service",
		HealthURL:   rpc.URL,
	})

	require.False(t, report.Healthy)
	require.False(t, report.RPCReachable)
	require.Contains(t, report.Message, "not responding")
}

func TestCheck_NoHealthURL(t *testing.T) {
	t.Parallel()

	checker := newTestChecker(&fakeManager{active: true}, &fakeRunner{output: "1.16.0"}, nil)

	report := checker.Check(context.Background(), domain.Component{
		Name:        "geth",
		BinaryPath:  writeBinary(t),
		ServiceName: "geth.service",
	})

	require.True(t, report.Healthy)
	require.False(t, report.RPCReachable)
	require.Empty(t, report.Message)
}

func TestCheck_ManagerError(t *testing.T) {
	t.Parallel()

	checker := newTestChecker(&fakeManager{activeErr: errors.New("dbus down")}, &fakeRunner{output: "1.16.0"}, nil)

	report := checker.Check(context.Background(), domain.Component{
		Name:        "geth",
		BinaryPath:  writeBinary(t),
		ServiceName: "geth.service",
	})

	require.False(t, report.Healthy)
	require.False(t, report.ServiceActive)
}

func TestCheck_ProbeFailureIsAdvisory(t *testing.T) {
	t.Parallel()

	checker := newTestChecker(&fakeManager{active: true}, &fakeRunner{err: errors.New("exec format error")}, nil)

	report := checker.Check(context.Background(), domain.Component{
		Name:        "geth",
		BinaryPath:  writeBinary(t),
		ServiceName: "geth.service",
	})

	require.True(t, report.Healthy)
	require.Empty(t, report.Version)
}

func TestCheck_CountsMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.NewMetrics()
	checker := newTestChecker(&fakeManager{active: false}, &fakeRunner{output: "1.16.0"}, m)

	component := domain.Component{
		Name:        "geth",
		BinaryPath:  writeBinary(t),
		ServiceName: "geth.service",
	}

	checker.Check(context.Background(), component)
	checker.Check(context.Background(), component)

	require.InDelta(t, 2, testutil.ToFloat64(m.HealthChecksTotal), 0.001)
	require.InDelta(t, 2, testutil.ToFloat64(m.HealthCheckFailures.WithLabelValues("geth")), 0.001)
}

func TestCheckAll_ReportsEveryComponent(t *testing.T) {
	t.Parallel()

	checker := newTestChecker(&fakeManager{active: true}, &fakeRunner{output: "1.16.0"}, nil)

	reports := checker.CheckAll(context.Background(), []domain.Component{
		{Name: "geth", BinaryPath: writeBinary(t), ServiceName: "geth.service"},
		{Name: "story", BinaryPath: filepath.Join(t.TempDir(), "absent"), ServiceName: "story.service"},
	})

	require.Len(t, reports, 2)
	require.True(t, reports[0].Healthy)
	require.False(t, reports[1].Healthy)
}
