package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// backupCmd captures a backup without upgrading anything.
var backupCmd = &cobra.Command{
	Use:   "backup <component>",
	Short: "Snapshot a component's current binary into the backup store.",
	Long: `Copies the component's active binary into the backup store together with
its probed version, checksum, and service metadata. The service keeps
running; nothing is stopped or replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		settings, err := loadSettings()
		if err != nil {
			return err
		}

		component, err := resolveComponent(settings, args[0])
		if err != nil {
			return err
		}

		record, err := newOrchestrator(settings).Backup(ctx, component)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Backup %s created (version %s)\n",
			record.ID, orDash(record.Version))

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(backupCmd)
}
