package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oshokin/node-sentinel/internal/proc"
	"github.com/oshokin/node-sentinel/internal/service/watch"
)

// checkUpdatesCmd compares installed versions against upstream releases.
var checkUpdatesCmd = &cobra.Command{
	Use:   "check-updates",
	Short: "Compare installed versions with the latest upstream releases.",
	Long: `Probes each configured component for its installed version and asks the
GitHub Releases API for the newest stable release of its repository.
Components without a release repository, or whose binary cannot be probed,
are skipped with a warning.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		settings, err := loadSettings()
		if err != nil {
			return err
		}

		watcher := watch.New(proc.NewOSRunner(), settings.ProbeTimeout)

		updates := watcher.CheckAll(ctx, settings.Components)
		if len(updates) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No components could be checked")

			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COMPONENT\tCURRENT\tLATEST\tUPDATE\tRELEASE")

		for _, update := range updates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				update.Component,
				update.CurrentVersion,
				update.LatestVersion,
				yesNo(update.UpdateAvailable),
				orDash(update.ReleaseURL))
		}

		return w.Flush()
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(checkUpdatesCmd)
}
