package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// rollbackBackupID selects a specific backup instead of the latest one.
	rollbackBackupID string

	// rollbackCmd restores a component from a recorded backup.
	rollbackCmd = &cobra.Command{
		Use:   "rollback <component>",
		Short: "Restore a component's binary from a backup and restart it.",
		Long: `Stops the component's service, restores the binary snapshot from a backup,
and starts the service again. The newest backup for the component is used
unless --backup selects a specific one.

The backup's own metadata names the binary path and service to restore, so a
rollback is correct even after the component configuration changed.`,
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

			if err = newOrchestrator(settings).Rollback(ctx, component, rollbackBackupID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Component %s restored from backup\n", component.Name)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rollbackCmd.Flags().StringVarP(&rollbackBackupID, "backup", "b", "", "backup id to restore (default: newest)")

	rootCmd.AddCommand(rollbackCmd)
}
