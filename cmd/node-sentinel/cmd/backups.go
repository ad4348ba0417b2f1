package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	backuprepo "github.com/oshokin/node-sentinel/internal/repository/backup"
)

var (
	// backupsComponent filters the listing to one component.
	backupsComponent string
	// backupsKeep overrides how many backups prune retains per component.
	backupsKeep int

	// backupsCmd groups the backup store subcommands.
	backupsCmd = &cobra.Command{
		Use:   "backups",
		Short: "Inspect and prune the backup store.",
	}

	// backupsListCmd prints backup records, newest first.
	backupsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List backup records, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			settings, err := loadSettings()
			if err != nil {
				return err
			}

			records, err := backuprepo.NewFileStore(settings.BackupRoot).List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCOMPONENT\tVERSION\tCREATED")

			for _, record := range records {
				if backupsComponent != "" && record.Component != backupsComponent {
					continue
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					record.ID,
					record.Component,
					orDash(record.Version),
					record.CreatedAt.Format(time.RFC3339))
			}

			return w.Flush()
		},
	}

	// backupsPruneCmd deletes old backups beyond the retention count.
	backupsPruneCmd = &cobra.Command{
		Use:   "prune [component]",
		Short: "Delete old backups beyond the retention count.",
		Long: `Deletes the oldest backups of a component, keeping the newest ones up to
the retention count. Without a component argument every configured component
is pruned. The count comes from --keep, falling back to the configured
backup retention.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			settings, err := loadSettings()
			if err != nil {
				return err
			}

			keep := backupsKeep
			if keep <= 0 {
				keep = settings.BackupRetention
			}

			names := settings.ComponentNames()

			if len(args) > 0 {
				component, resolveErr := resolveComponent(settings, args[0])
				if resolveErr != nil {
					return resolveErr
				}

				names = []string{component.Name}
			}

			store := backuprepo.NewFileStore(settings.BackupRoot)

			for _, name := range names {
				deleted, pruneErr := store.Prune(ctx, name, keep)
				if pruneErr != nil {
					return fmt.Errorf("prune %s: %w", name, pruneErr)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: deleted %d backups, kept up to %d\n",
					name, len(deleted), keep)
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	backupsListCmd.Flags().StringVar(&backupsComponent, "component", "", "only list backups of this component")
	backupsPruneCmd.Flags().IntVarP(&backupsKeep, "keep", "k", 0, "backups to keep per component (default: configured retention)")

	backupsCmd.AddCommand(backupsListCmd, backupsPruneCmd)
	rootCmd.AddCommand(backupsCmd)
}
