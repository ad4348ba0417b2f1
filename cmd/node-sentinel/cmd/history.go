package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/node-sentinel/internal/repository/history"
)

var (
	// historyLimit caps how many records the history command prints.
	historyLimit int

	// historyCmd prints recorded upgrade and rollback outcomes.
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recorded upgrade and rollback outcomes, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			settings, err := loadSettings()
			if err != nil {
				return err
			}

			outcomes, err := history.NewFileRecorder(settings.HistoryFile).List(ctx, historyLimit)
			if err != nil {
				return err
			}

			if len(outcomes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs")

				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tCOMPONENT\tOPERATION\tSTATUS\tTARGET\tRESULT\tFAILURE")

			for _, outcome := range outcomes {
				failure := ""
				if outcome.Failure != nil {
					failure = string(outcome.Failure.Kind)
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					outcome.StartedAt.Format(time.RFC3339),
					outcome.Component,
					outcome.Operation,
					outcome.Status,
					orDash(outcome.TargetVersion),
					orDash(outcome.ResultingVersion),
					orDash(failure))
			}

			return w.Flush()
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum records to show (0 for all)")

	rootCmd.AddCommand(historyCmd)
}
