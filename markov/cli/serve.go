package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wbrown/dadacore/markov/httpapi"
	"github.com/wbrown/dadacore/markov/observability"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	BindAddr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the model over HTTP",
		Long: `Serve generation, learning and stats over HTTP, with Prometheus
metrics on /metrics. The model is synced on shutdown.

Example:
  dada serve --bind 127.0.0.1:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.BindAddr, "bind", "", "listen address (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) (err error) {
	logger := setupLogging(opts.RootOptions, cmd)
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("bind") {
		cfg.Server.BindAddr = opts.BindAddr
	}

	metrics := observability.NewMetrics(cfg.Server.MetricsNamespace)
	b, err := openBrain(commandContext(cmd), opts.RootOptions, cmd, cfg, metrics.Handler())
	if err != nil {
		return err
	}
	defer closeBrain(b, &err)

	api := httpapi.New(b, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.BindAddr,
		Handler: api.Router(),
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.BindAddr, "backend", cfg.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return WrapExitError(ExitCommandError, "listen error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
	return nil
}
