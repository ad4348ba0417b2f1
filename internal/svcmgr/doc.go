// Package svcmgr abstracts the host's process supervisor behind a Manager
// interface with start, stop, and is-active operations.
//
// Two implementations exist: Systemd shells out to systemctl through the
// proc.Runner abstraction, and Process drives an unsupervised binary directly
// through the process table. Components select their implementation in
// configuration.
package svcmgr
