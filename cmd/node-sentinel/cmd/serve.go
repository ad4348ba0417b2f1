package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/node-sentinel/internal/service/server"
)

// serveCmd runs the monitoring HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve [listen-address]",
	Short: "Run the read-only monitoring HTTP API.",
	Long: `Serves component health, status, upgrade history, backup listings, and
Prometheus metrics over HTTP until interrupted. The surface is read-only;
upgrades and rollbacks stay on the CLI.

The listen address comes from the configuration file and can be overridden
with an argument (e.g. :9090, 0.0.0.0:8080).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		// Use listen address argument if provided, otherwise rely on config.
		var listenAddress string
		if len(args) > 0 {
			listenAddress = args[0]
		}

		options := &server.Options{
			ConfigPath:    configPath,
			ListenAddress: listenAddress,
		}

		return server.Run(ctx, options)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(serveCmd)
}
