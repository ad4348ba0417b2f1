package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// upgradeSource overrides the component's download source template.
	upgradeSource string

	// upgradeCmd runs one full upgrade attempt for a component.
	upgradeCmd = &cobra.Command{
		Use:   "upgrade <component> <version>",
		Short: "Upgrade a component to a target version, rolling back on failure.",
		Long: `Runs one upgrade attempt: fetch and validate the new binary, back up the
current one, stop the service, swap the binary, restart, and verify the
reported version.

A failure before the service is touched aborts with the node untouched. A
failure after that point restores the backup and restarts the old binary.
Interrupts are honored until the service stops; after that the attempt runs
to a terminal state.

The download source comes from the component's source template with {version}
substituted, or from --source when given.`,
		Args: cobra.ExactArgs(2),
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

			outcome, err := newOrchestrator(settings).Upgrade(ctx, component, args[1], upgradeSource)
			if outcome != nil {
				printOutcome(cmd.OutOrStdout(), outcome)
			}

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	upgradeCmd.Flags().StringVarP(&upgradeSource, "source", "s", "", "download URL overriding the source template")

	rootCmd.AddCommand(upgradeCmd)
}
