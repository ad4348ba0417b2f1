package proc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// errEmptyVersionOutput is returned when a probe succeeds but prints nothing.
var errEmptyVersionOutput = errors.New("version probe produced no output")

// ProbeVersion runs `<binary> version` and returns the reported version string.
// The probe is bounded by the provided timeout.
func ProbeVersion(ctx context.Context, runner Runner, binaryPath string, timeout time.Duration) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := runner.Run(probeCtx, binaryPath, "version")
	if err != nil {
		return "", fmt.Errorf("run version probe: %w", err)
	}

	if result.ExitCode != 0 {
		return "", fmt.Errorf("version probe exited with status %d: %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	version := ParseVersionOutput(result.Stdout)
	if version == "" {
		return "", errEmptyVersionOutput
	}

	return version, nil
}

// ParseVersionOutput normalizes raw probe output into a version string.
// Output styles differ between node binaries: some print a bare version,
// others print a multi-line report with a "Version:" line.
func ParseVersionOutput(output string) string {
	output = strings.TrimSpace(output)

	for _, line := range strings.Split(output, "\n") {
		if _, after, found := strings.Cut(line, "Version:"); found {
			return strings.TrimSpace(after)
		}
	}

	return output
}

// FirstLine returns the first non-empty line of probe output, for display in
// tables and log fields.
func FirstLine(s string) string {
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}

	return ""
}
