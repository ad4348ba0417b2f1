// Package version exposes the build metadata of node-sentinel itself.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. Short and Full
// render the version string for CLI output and logs. The versions of the
// managed node binaries are probed at runtime and never pass through here.
package version
