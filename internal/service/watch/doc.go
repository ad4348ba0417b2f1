// Package watch discovers newer upstream releases for managed components.
// It probes the installed binary for its version, asks the GitHub Releases
// API for the newest stable release of the component's repository, and
// compares the two with semantic version ordering. The package only
// reports; acting on an available update is the operator's call.
package watch
