package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/node-sentinel/internal/config"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/metrics"
	"github.com/oshokin/node-sentinel/internal/proc"
	backuprepo "github.com/oshokin/node-sentinel/internal/repository/backup"
	"github.com/oshokin/node-sentinel/internal/repository/history"
	"github.com/oshokin/node-sentinel/internal/service/health"
	"github.com/oshokin/node-sentinel/internal/service/watch"
)

// Options controls the monitoring API process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override.
	ListenAddress string
}

const (
	// readHeaderTimeout bounds reading request headers.
	readHeaderTimeout = 10 * time.Second
	// readTimeout bounds reading a full request.
	readTimeout = 15 * time.Second
	// writeTimeout bounds writing a full response. Health and status
	// handlers probe binaries and remote APIs, so this stays generous.
	writeTimeout = 60 * time.Second
	// idleTimeout bounds keep-alive connections.
	idleTimeout = 60 * time.Second
	// shutdownTimeout bounds the graceful drain on shutdown.
	shutdownTimeout = 10 * time.Second
)

// Run starts the monitoring HTTP API and blocks until the context is
// canceled or the server stops. The surface is read-only; upgrades and
// rollbacks stay on the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "node-sentinel-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Use the listen address from config unless overridden on the command line.
	listenAddress := settings.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	m := metrics.NewMetrics()
	runner := proc.NewOSRunner()

	srv := New(Dependencies{
		Components: settings.Components,
		Health:     health.New(runner, m, settings.ProbeTimeout, settings.HealthTimeout),
		Watch:      watch.New(runner, settings.ProbeTimeout),
		History:    history.NewFileRecorder(settings.HistoryFile),
		Backups:    backuprepo.NewFileStore(settings.BackupRoot),
		Metrics:    m,
	})

	httpServer := &http.Server{
		Handler:           srv.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(ctx, "Monitoring API listening",
		"listen_address", listenAddress,
		"components", len(settings.Components))

	// Done channel is closed after Shutdown finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down monitoring API")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.WarnKV(ctx, "Monitoring API shutdown failed", "error", shutdownErr)
		}

		close(done)
	}()

	if err = httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve monitoring API: %w", err)
	}

	<-done
	logger.Info(ctx, "Monitoring API stopped")

	return nil
}
