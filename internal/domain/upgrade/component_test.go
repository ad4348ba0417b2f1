package upgrade

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestComponent_EffectiveBinaryName checks the fallback to the installed binary's base name.
func TestComponent_EffectiveBinaryName(t *testing.T) {
	t.Parallel()

	c := Component{BinaryPath: "/usr/local/bin/consensus-node"}
	require.Equal(t, "consensus-node", c.EffectiveBinaryName())

	c.BinaryName = "consensusd"
	require.Equal(t, "consensusd", c.EffectiveBinaryName())
}

// TestComponent_SourceURL checks template substitution and the explicit source override.
func TestComponent_SourceURL(t *testing.T) {
	t.Parallel()

	c := Component{
		SourceTemplate: "https://releases.local/{version}/node-{version}.tar.gz",
	}

	require.Equal(t,
		"https://releases.local/v1.2.3/node-v1.2.3.tar.gz",
		c.SourceURL("v1.2.3", ""))

	require.Equal(t,
		"https://mirror.local/v9.tar.gz",
		c.SourceURL("v9", "https://mirror.local/{version}.tar.gz"))
}

// TestFailureKindOf covers the classification of wrapped sentinel errors.
func TestFailureKindOf(t *testing.T) {
	t.Parallel()

	cases := map[FailureKind]error{
		KindBackup:          fmt.Errorf("snapshot: %w", ErrBackupFailed),
		KindRestore:         fmt.Errorf("restore: %w", ErrRestoreFailed),
		KindDownload:        fmt.Errorf("get: %w", ErrDownloadFailed),
		KindExtract:         fmt.Errorf("untar: %w", ErrExtractFailed),
		KindStagedBinary:    fmt.Errorf("probe: %w", ErrStagedBinary),
		KindStopTimeout:     fmt.Errorf("stop: %w", ErrStopTimeout),
		KindStartTimeout:    fmt.Errorf("start: %w", ErrStartTimeout),
		KindVersionMismatch: fmt.Errorf("verify: %w", ErrVersionMismatch),
		KindProbe:           fmt.Errorf("verify: %w", ErrProbeFailed),
		KindRollback:        fmt.Errorf("recover: %w", ErrRollbackFailed),
		KindBusy:            ErrBusy,
		KindUnknown:         fmt.Errorf("something else entirely"),
	}

	for want, err := range cases {
		require.Equal(t, want, FailureKindOf(err), "error: %v", err)
	}
}

// TestNewFailure ensures nil errors produce no failure record.
func TestNewFailure(t *testing.T) {
	t.Parallel()

	require.Nil(t, NewFailure(nil))

	f := NewFailure(fmt.Errorf("stop: %w", ErrStopTimeout))
	require.Equal(t, KindStopTimeout, f.Kind)
	require.Contains(t, f.Message, "stop")
}
