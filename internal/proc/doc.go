// Package proc abstracts external process execution behind a small Runner
// interface with typed results (exit code, captured output, timeout flag),
// so orchestration logic stays testable without spawning real processes.
//
// It also hosts the version probe: running `<binary> version` and normalizing
// the output styles the managed node binaries use.
package proc
