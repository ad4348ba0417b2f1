package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oshokin/node-sentinel/internal/config"
	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/proc"
	backuprepo "github.com/oshokin/node-sentinel/internal/repository/backup"
	"github.com/oshokin/node-sentinel/internal/repository/history"
	backupsvc "github.com/oshokin/node-sentinel/internal/service/backup"
	"github.com/oshokin/node-sentinel/internal/service/control"
	"github.com/oshokin/node-sentinel/internal/service/fetch"
	"github.com/oshokin/node-sentinel/internal/service/orchestrator"
	"github.com/oshokin/node-sentinel/internal/service/rollback"
	"github.com/oshokin/node-sentinel/internal/service/verify"
	"github.com/oshokin/node-sentinel/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level when set.
	logLevel string

	// rootCmd represents the base command for managing node binaries.
	rootCmd = &cobra.Command{
		Use:   "node-sentinel",
		Short: "Upgrade, roll back, and monitor blockchain node binaries.",
		Long: `Safely replaces running node binaries with a fetch-first state machine.

Every upgrade stages and validates the new binary before the running service
is touched, captures a restorable backup of the active binary, and rolls back
automatically when the swap, restart, or verification fails. Backups, upgrade
history, and health live on local disk next to the managed binaries.

Components (geth, story, ...) are declared in the configuration file together
with their binary paths, service units, and download sources.`,
		SilenceUsage: true, // prevent printing usage info on error
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if logLevel == "" {
				return nil
			}

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the node-sentinel CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", "", "override the configured log level (debug..fatal)")
}

// loadSettings reads the configuration and applies its log level unless the
// command line already set one.
func loadSettings() (*config.Config, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel == "" && settings.LogLevel != "" {
		if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
			logger.SetLevel(level)
		}
	}

	return settings, nil
}

// resolveComponent maps a component name argument to its configuration.
func resolveComponent(settings *config.Config, name string) (domain.Component, error) {
	component, ok := settings.Component(name)
	if !ok {
		return domain.Component{}, fmt.Errorf("unknown component %q (configured: %s)",
			name, strings.Join(settings.ComponentNames(), ", "))
	}

	return component, nil
}

// newOrchestrator wires the orchestration service and its collaborators from
// loaded settings. One-shot command runs skip metrics registration, so the
// metrics receiver stays nil.
func newOrchestrator(settings *config.Config) *orchestrator.Service {
	runner := proc.NewOSRunner()
	store := backuprepo.NewFileStore(settings.BackupRoot)
	backups := backupsvc.NewFileManager(store, runner, settings.ProbeTimeout)
	controller := control.NewManagerController(runner, settings.StopTimeout, settings.StartSettleDelay)

	return orchestrator.New(orchestrator.Options{
		Fetcher:      fetch.NewHTTPFetcher(runner, settings.DownloadTimeout, settings.ProbeTimeout),
		Backups:      backups,
		Control:      controller,
		Verifier:     verify.New(runner, settings.ProbeTimeout, settings.HealthTimeout),
		Rollback:     rollback.New(backups, controller),
		Store:        store,
		History:      history.NewFileRecorder(settings.HistoryFile),
		Runner:       runner,
		LockDir:      settings.LockDir,
		ProbeTimeout: settings.ProbeTimeout,
	})
}
