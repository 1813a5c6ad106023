// Package main is the entry point for the paperhub CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/paperhub/internal/app"
	"github.com/helixir/paperhub/internal/config"
	"github.com/helixir/paperhub/internal/observability"
)

// version is set at build time via ldflags.
var version = "dev"

// closeTimeout bounds plugin shutdown when a command exits.
const closeTimeout = 10 * time.Second

// globalFlags holds the persistent flags shared by every subcommand.
var globalFlags struct {
	configFile string
	format     string
	logLevel   string
}

// rootCmd is the base command for the paperhub CLI.
var rootCmd = &cobra.Command{
	Use:   "paperhub",
	Short: "Search and collect papers from ADS, arXiv and INSPIRE-HEP",
	Long: `paperhub talks to bibliographic sources through plugins. One plugin is
active at a time; searches go to it unless --plugin names another. Lookups
try the active plugin first and fall back to every other enabled plugin.

Papers can be imported into a local SQLite library, and their PDFs fetched
from the best available source.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(globalFlags.format)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "config file (default: ./config.yaml or ~/.config/paperhub/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.format, "format", "o", formatTable, "output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&globalFlags.logLevel, "log-level", "", "override the configured log level")
}

// loadConfig reads the configuration and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(globalFlags.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if globalFlags.logLevel != "" {
		if !observability.ValidLevel(globalFlags.logLevel) {
			return nil, fmt.Errorf("invalid log level %q", globalFlags.logLevel)
		}
		cfg.Logging.Level = globalFlags.logLevel
	}
	return cfg, nil
}

// openApp builds the application for one command. The returned func shuts
// it down and must be called.
func openApp(cmd *cobra.Command, opts app.Options) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := observability.NewLogger(cfg.Logging.Observability())

	a, err := app.New(cmd.Context(), cfg, logger, opts)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			logger.Warn().Err(err).Msg("shutdown incomplete")
		}
	}
	return a, closeFn, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
