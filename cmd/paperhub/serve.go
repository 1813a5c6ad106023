package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/helixir/paperhub/internal/app"
	httpserver "github.com/helixir/paperhub/internal/server/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API",
	Long: `Serve exposes the plugin manager and the local library over HTTP, with
Prometheus metrics at the configured path. It stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, closeApp, err := openApp(cmd, app.Options{Library: true})
		if err != nil {
			return err
		}
		defer closeApp()

		cfg := a.Config
		logger := a.Logger.With().Str("component", "server").Logger()

		httpCfg := httpserver.Config{
			Address:         cfg.Server.HTTPAddress(),
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}
		if cfg.Metrics.Enabled {
			httpCfg.MetricsPath = cfg.Metrics.Path
			httpCfg.MetricsHandler = promhttp.Handler()
		}
		srv := httpserver.NewServer(httpCfg, a.Manager, a.Library, a.Logger)

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()

		logger.Info().
			Str("http_address", httpCfg.Address).
			Str("active_plugin", a.Manager.ActiveID()).
			Msg("paperhub is ready")

		select {
		case <-ctx.Done():
			logger.Info().Msg("received shutdown signal")
		case err := <-errCh:
			logger.Error().Err(err).Msg("server error")
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
		logger.Info().Msg("paperhub shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
