package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// verifyCmd checks that a component's live binary reports the expected version.
var verifyCmd = &cobra.Command{
	Use:   "verify <component> [version]",
	Short: "Verify the version a component's binary reports.",
	Long: `Probes the component's binary for its version and compares it with the
expected one. Without an explicit version the probed version is used as the
expectation, which turns the command into a liveness check: it fails only
when the binary cannot be probed at all.`,
	Args: cobra.RangeArgs(1, 2),
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

		var expectedVersion string
		if len(args) > 1 {
			expectedVersion = args[1]
		}

		if err = newOrchestrator(settings).Verify(ctx, component, expectedVersion); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Component %s verified\n", component.Name)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(verifyCmd)
}
