package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the typed outcome of one external command execution.
type Result struct {
	// ExitCode is the command's exit status (zero on success).
	ExitCode int
	// Stdout is the captured standard output.
	Stdout string
	// Stderr is the captured standard error.
	Stderr string
	// TimedOut reports whether the context deadline cut the command short.
	TimedOut bool
}

// Runner executes external commands and captures their output.
//
// An error is returned only when the command could not be executed or was cut
// short by the context. A command that runs to completion with a non-zero
// status yields a nil error and the status in Result.ExitCode, so callers can
// treat exit codes as signal rather than failure.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// OSRunner executes commands on the host through os/exec.
type OSRunner struct{}

// NewOSRunner returns a Runner backed by the host OS.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run executes the command and captures stdout and stderr.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	// A process killed by the context surfaces as an ExitError too, so the
	// context check has to come first.
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)

		return result, fmt.Errorf("command %s: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()

		return result, nil
	}

	return result, fmt.Errorf("command %s: %w", name, err)
}
