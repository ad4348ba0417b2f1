// Package backup captures binary snapshots before destructive actions and
// restores them during rollbacks.
//
// Snapshots live in the file-backed backup store; restores are applied
// atomically over the active binary path with checksum verification.
package backup
