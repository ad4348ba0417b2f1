package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oshokin/node-sentinel/internal/proc"
	"github.com/oshokin/node-sentinel/internal/service/health"
	"github.com/oshokin/node-sentinel/internal/service/watch"
)

// statusCmd prints a one-line summary per configured component.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show version, service state, health, and updates per component.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		settings, err := loadSettings()
		if err != nil {
			return err
		}

		runner := proc.NewOSRunner()
		checker := health.New(runner, nil, settings.ProbeTimeout, settings.HealthTimeout)
		watcher := watch.New(runner, settings.ProbeTimeout)

		updates := make(map[string]watch.Update)
		for _, update := range watcher.CheckAll(ctx, settings.Components) {
			updates[update.Component] = update
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COMPONENT\tVERSION\tACTIVE\tHEALTHY\tUPDATE\tNOTE")

		for _, report := range checker.CheckAll(ctx, settings.Components) {
			latest := ""
			if update, ok := updates[report.Component]; ok && update.UpdateAvailable {
				latest = update.LatestVersion + " available"
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				report.Component,
				orDash(report.Version),
				yesNo(report.ServiceActive),
				yesNo(report.Healthy),
				orDash(latest),
				orDash(report.Message))
		}

		return w.Flush()
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd)
}
