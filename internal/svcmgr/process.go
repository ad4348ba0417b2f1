package svcmgr

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/mitchellh/go-ps"
)

// Process supervises a component that runs without a service manager,
// driving it directly through the process table.
type Process struct {
	// binaryPath is the executable launched by Start.
	binaryPath string
	// executable is the process name matched in the process table.
	executable string
}

// NewProcess returns a Manager for a component running as a bare process.
func NewProcess(binaryPath, executable string) *Process {
	return &Process{
		binaryPath: binaryPath,
		executable: executable,
	}
}

// Start launches the configured binary detached from the sentinel, so the
// node keeps running after the sentinel exits. The name argument is unused.
func (p *Process) Start(_ context.Context, _ string) error {
	cmd := exec.Command(p.binaryPath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.binaryPath, err)
	}

	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("release %s: %w", p.binaryPath, err)
	}

	return nil
}

// Stop kills every process whose executable matches the component's.
// The name argument is unused.
func (p *Process) Stop(_ context.Context, _ string) error {
	pids, err := p.matchingProcesses()
	if err != nil {
		return err
	}

	for _, pid := range pids {
		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("find process %d: %w", pid, err)
		}

		if err := process.Kill(); err != nil {
			return fmt.Errorf("kill process %d: %w", pid, err)
		}
	}

	return nil
}

// IsActive reports whether any process with the component's executable name
// is running. The name argument is unused.
func (p *Process) IsActive(_ context.Context, _ string) (bool, error) {
	pids, err := p.matchingProcesses()
	if err != nil {
		return false, err
	}

	return len(pids) > 0, nil
}

// matchingProcesses scans the process table for the component's executable,
// skipping the sentinel's own process.
func (p *Process) matchingProcesses() ([]int, error) {
	processes, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	self := os.Getpid()

	var pids []int

	for _, process := range processes {
		if process.Pid() == self {
			continue
		}

		if process.Executable() == p.executable {
			pids = append(pids, process.Pid())
		}
	}

	return pids, nil
}
