package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
)

// Config holds the sentinel settings and the managed component definitions.
type Config struct {
	// LogLevel is the minimum level for console logging (debug..fatal).
	LogLevel string `yaml:"log_level,omitempty"`
	// BackupRoot is the directory holding one subdirectory per backup id.
	BackupRoot string `yaml:"backup_root"`
	// HistoryFile is the JSON file upgrade outcomes are appended to.
	HistoryFile string `yaml:"history_file"`
	// LockDir is the directory holding per-component lock files.
	LockDir string `yaml:"lock_dir"`
	// ListenAddress is the host:port the monitoring API binds to.
	ListenAddress string `yaml:"listen_addr"`
	// StopTimeout bounds the stop-and-poll sequence for a service.
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// StartSettleDelay is the wait after a start request before the single
	// active-state check.
	StartSettleDelay time.Duration `yaml:"start_settle_delay"`
	// ProbeTimeout bounds a single `<binary> version` execution.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// DownloadTimeout bounds a full release archive download.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// HealthTimeout bounds one advisory health RPC request.
	HealthTimeout time.Duration `yaml:"health_timeout"`
	// BackupRetention is how many backups per component `backups prune` keeps.
	BackupRetention int `yaml:"backup_retention"`
	// Components lists the managed node binaries.
	Components []domain.Component `yaml:"components"`
}

const (
	// DefaultConfigFilename is the default filename for sentinel settings.
	DefaultConfigFilename = "node-sentinel.yaml"

	// DefaultBackupDirname is the default directory for backup snapshots.
	DefaultBackupDirname = "node-sentinel-backups"

	// DefaultHistoryFilename is the default file for upgrade history records.
	DefaultHistoryFilename = "node-sentinel-history.json"

	// DefaultLockDirname is the default directory for component lock files.
	DefaultLockDirname = "node-sentinel-locks"

	// DefaultListenAddress is the default bind address of the monitoring API.
	DefaultListenAddress = "127.0.0.1:8080"

	// DefaultStopTimeout bounds service stop polling (thirty one-second polls).
	DefaultStopTimeout = 30 * time.Second

	// DefaultStartSettleDelay is the pause before the post-start check.
	DefaultStartSettleDelay = 5 * time.Second

	// DefaultProbeTimeout bounds a version probe execution.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultDownloadTimeout bounds a release archive download.
	DefaultDownloadTimeout = 5 * time.Minute

	// DefaultHealthTimeout bounds an advisory health RPC request.
	DefaultHealthTimeout = 5 * time.Second

	// DefaultBackupRetention is how many backups per component are kept on prune.
	DefaultBackupRetention = 5

	// DefaultFilePermissions is the file permission for files the sentinel writes.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoComponents is returned when the component list is empty.
	errNoComponents = errors.New("at least one component must be configured")
	// errComponentNameRequired is returned when a component has no name.
	errComponentNameRequired = errors.New("component name must be provided")
	// errDuplicateComponent is returned when two components share a name.
	errDuplicateComponent = errors.New("component names must be unique")
	// errBinaryPathRequired is returned when a component has no binary path.
	errBinaryPathRequired = errors.New("component binary path must be provided")
	// errBinaryPathNotAbsolute is returned for relative binary paths.
	errBinaryPathNotAbsolute = errors.New("component binary path must be absolute")
	// errServiceNameRequired is returned when a component has no service name.
	errServiceNameRequired = errors.New("component service name must be provided")
	// errUnknownManager is returned for unsupported manager kinds.
	errUnknownManager = errors.New("component manager must be systemd or process")
	// errInvalidReleaseRepo is returned when a release repo is not owner/name.
	errInvalidReleaseRepo = errors.New("component release repo must be owner/name")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields, applies defaults, and verifies formats.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if len(cfg.Components) == 0 {
		return errNoComponents
	}

	seen := make(map[string]struct{}, len(cfg.Components))

	for i := range cfg.Components {
		component := &cfg.Components[i]
		if err := validateComponent(component); err != nil {
			return fmt.Errorf("component %q: %w", component.Name, err)
		}

		if _, ok := seen[component.Name]; ok {
			return fmt.Errorf("%w: %s", errDuplicateComponent, component.Name)
		}

		seen[component.Name] = struct{}{}
	}

	return nil
}

// Component returns the component configuration with the given name.
func (c *Config) Component(name string) (domain.Component, bool) {
	for _, component := range c.Components {
		if component.Name == name {
			return component, true
		}
	}

	return domain.Component{}, false
}

// ComponentNames returns the configured component names in declaration order.
func (c *Config) ComponentNames() []string {
	names := make([]string, 0, len(c.Components))
	for _, component := range c.Components {
		names = append(names, component.Name)
	}

	return names
}

// applyDefaults fills unset settings with their default values.
func applyDefaults(cfg *Config) {
	if cfg.BackupRoot == "" {
		cfg.BackupRoot = DefaultBackupDirname
	}

	if cfg.HistoryFile == "" {
		cfg.HistoryFile = DefaultHistoryFilename
	}

	if cfg.LockDir == "" {
		cfg.LockDir = DefaultLockDirname
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	if cfg.StartSettleDelay <= 0 {
		cfg.StartSettleDelay = DefaultStartSettleDelay
	}

	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}

	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}

	if cfg.BackupRetention <= 0 {
		cfg.BackupRetention = DefaultBackupRetention
	}
}

// validateComponent checks one component definition and applies its defaults.
func validateComponent(component *domain.Component) error {
	if component.Name == "" {
		return errComponentNameRequired
	}

	if component.BinaryPath == "" {
		return errBinaryPathRequired
	}

	if !filepath.IsAbs(component.BinaryPath) {
		return errBinaryPathNotAbsolute
	}

	if component.ServiceName == "" {
		return errServiceNameRequired
	}

	switch component.Manager {
	case "":
		component.Manager = domain.ManagerSystemd
	case domain.ManagerSystemd, domain.ManagerProcess:
	default:
		return fmt.Errorf("%w: %s", errUnknownManager, component.Manager)
	}

	if component.HealthURL != "" {
		if _, err := url.ParseRequestURI(component.HealthURL); err != nil {
			return fmt.Errorf("invalid health URL: %w", err)
		}
	}

	if component.SourceTemplate != "" {
		if _, err := url.ParseRequestURI(component.SourceTemplate); err != nil {
			return fmt.Errorf("invalid source template: %w", err)
		}
	}

	if component.ReleaseRepo != "" && strings.Count(component.ReleaseRepo, "/") != 1 {
		return fmt.Errorf("%w: %s", errInvalidReleaseRepo, component.ReleaseRepo)
	}

	return nil
}
