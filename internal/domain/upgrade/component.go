package upgrade

import (
	"path/filepath"
	"strings"
)

// ManagerKind selects the service-manager implementation driving a component.
type ManagerKind string

const (
	// ManagerSystemd controls the component through systemctl.
	ManagerSystemd ManagerKind = "systemd"
	// ManagerProcess controls the component directly through the process table.
	ManagerProcess ManagerKind = "process"
)

// VersionPlaceholder is the token replaced with the target version when a
// component's source template is rendered into a download URL.
const VersionPlaceholder = "{version}"

// Component describes one managed node binary. It is immutable configuration
// supplied by the caller; the orchestrator never persists or mutates it.
type Component struct {
	// Name identifies the component, e.g. "consensus" or "execution".
	Name string `json:"name" yaml:"name"`
	// BinaryPath is the absolute path of the installed binary.
	BinaryPath string `json:"binary_path" yaml:"binary_path"`
	// ServiceName is the name the service manager knows the component by.
	ServiceName string `json:"service_name" yaml:"service_name"`
	// HealthURL is the advisory HTTP status endpoint of the running node.
	HealthURL string `json:"health_url" yaml:"health_url"`
	// SourceTemplate is the release archive URL with a {version} placeholder.
	SourceTemplate string `json:"source_template" yaml:"source_template"`
	// BinaryName is the expected binary file name inside release archives.
	// Empty means the base name of BinaryPath.
	BinaryName string `json:"binary_name,omitempty" yaml:"binary_name,omitempty"`
	// ReleaseRepo is the GitHub "owner/name" the release watcher polls.
	ReleaseRepo string `json:"release_repo,omitempty" yaml:"release_repo,omitempty"`
	// Manager selects the service-manager implementation for this component.
	Manager ManagerKind `json:"manager" yaml:"manager"`
}

// EffectiveBinaryName returns the binary file name expected inside release
// archives, falling back to the base name of the installed binary.
func (c Component) EffectiveBinaryName() string {
	if c.BinaryName != "" {
		return c.BinaryName
	}

	return filepath.Base(c.BinaryPath)
}

// SourceURL renders the download URL for the requested version. An explicit
// source overrides the component template.
func (c Component) SourceURL(version, source string) string {
	template := c.SourceTemplate
	if source != "" {
		template = source
	}

	return strings.ReplaceAll(template, VersionPlaceholder, version)
}
