package proc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestOSRunner_CapturesOutput verifies stdout capture and a zero exit code.
func TestOSRunner_CapturesOutput(t *testing.T) {
	t.Parallel()

	runner := NewOSRunner()

	result, err := runner.Run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, "hello\n", result.Stdout)
	require.False(t, result.TimedOut)
}

// TestOSRunner_NonZeroExit ensures a completed command with non-zero status is not an error.
func TestOSRunner_NonZeroExit(t *testing.T) {
	t.Parallel()

	runner := NewOSRunner()

	result, err := runner.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	require.NoError(t, err)
	require.Equal(t, 3, result.ExitCode)
	require.Equal(t, "oops\n", result.Stderr)
}

// TestOSRunner_Timeout ensures a deadline kills the command and flags the result.
func TestOSRunner_Timeout(t *testing.T) {
	t.Parallel()

	runner := NewOSRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := runner.Run(ctx, "sleep", "10")
	require.Error(t, err)
	require.True(t, result.TimedOut)
}

// TestOSRunner_MissingBinary ensures an unrunnable command is an error.
func TestOSRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	runner := NewOSRunner()

	_, err := runner.Run(context.Background(), "/nonexistent/binary-for-test")
	require.Error(t, err)
}

// TestParseVersionOutput covers the output styles of the managed binaries.
func TestParseVersionOutput(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"v1.2.3\n":        "v1.2.3",
		"  v1.2.3  ":      "v1.2.3",
		"geth\nVersion: 0.11.0-stable\nArchitecture: amd64\n": "0.11.0-stable",
		"": "",
	}

	for in, want := range cases {
		require.Equal(t, want, ParseVersionOutput(in))
	}
}

// TestFirstLine returns only the leading non-empty line.
func TestFirstLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, "v1.0.0", FirstLine("\nv1.0.0\ncommit: abc\n"))
	require.Equal(t, "", FirstLine("   \n  "))
}
