// Package history implements persistence for upgrade and rollback outcomes.
//
// The FileRecorder appends outcomes to a JSON file on disk and exposes a
// Recorder interface that the orchestrator and read surfaces depend on.
package history
