// Package app wires configuration, logging, metrics, the credential store,
// the plugin manager, the local library and the PDF fetcher into one value
// shared by the CLI and the REST server.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/config"
	"github.com/helixir/paperhub/internal/credentials"
	"github.com/helixir/paperhub/internal/library"
	"github.com/helixir/paperhub/internal/observability"
	"github.com/helixir/paperhub/internal/pdf"
	"github.com/helixir/paperhub/internal/plugins"
	"github.com/helixir/paperhub/internal/plugins/ads"
	"github.com/helixir/paperhub/internal/plugins/arxiv"
	"github.com/helixir/paperhub/internal/plugins/inspire"
)

// Options selects the optional parts of an App.
type Options struct {
	// Library opens the SQLite paper library.
	Library bool
}

// App holds every long-lived component.
type App struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Metrics     *observability.Metrics
	Credentials credentials.Store
	Manager     *plugins.Manager
	Fetcher     *pdf.Fetcher

	// Store and Library are nil unless Options.Library was set.
	Store   library.Store
	Library *library.Importer
}

// New builds an App from cfg and initializes its plugins. Plugins that fail
// to initialize are disabled and logged; they do not fail New.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.Metrics.Enabled {
		a.Metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	creds, err := credentials.Open(cfg.Credentials.Path)
	if err != nil {
		return nil, err
	}
	a.Credentials = creds

	scheduler := plugins.NewScheduler(plugins.SchedulerConfig{
		DefaultDelay: cfg.Plugins.DefaultDelay,
		Delays:       cfg.Plugins.Delays(),
		Metrics:      a.Metrics,
	})
	a.Manager = plugins.NewManager(plugins.ManagerConfig{
		Logger:      logger,
		Scheduler:   scheduler,
		Credentials: creds,
		Metrics:     a.Metrics,
	})

	for _, p := range BuildPlugins(&cfg.Plugins, a.Metrics) {
		if err := a.Manager.Register(p); err != nil {
			a.closeStores()
			return nil, fmt.Errorf("register plugin %s: %w", p.Descriptor().ID, err)
		}
	}
	if cfg.Plugins.Active != "" {
		if err := a.Manager.SetActive(cfg.Plugins.Active); err != nil {
			a.closeStores()
			return nil, fmt.Errorf("activate plugin: %w", err)
		}
	}

	for _, r := range a.Manager.Initialize(ctx) {
		if r.Err != nil {
			logger.Warn().Err(r.Err).Str("plugin", r.PluginID).Msg("plugin disabled after failed initialization")
		}
	}

	a.Fetcher = pdf.NewFetcher(pdf.NewDownloader(pdf.Config{
		Timeout:   cfg.PDF.Timeout,
		MaxSize:   cfg.PDF.MaxSize,
		UserAgent: cfg.Plugins.UserAgent,
	}), logger, a.Metrics)

	if opts.Library {
		store, err := library.NewSQLiteStore(cfg.Library.Path, logger)
		if err != nil {
			a.Manager.Shutdown(ctx)
			a.closeStores()
			return nil, err
		}
		a.Store = store
		a.Library = library.NewImporter(store, a.Manager, logger, a.Metrics)
	}

	logger.Debug().
		Str("active", a.Manager.ActiveID()).
		Int("plugins", len(a.Manager.Info())).
		Bool("library", a.Library != nil).
		Msg("application initialized")
	return a, nil
}

// BuildPlugins creates the enabled built-in plugins in registration order:
// ADS, arXiv, INSPIRE.
func BuildPlugins(cfg *config.PluginsConfig, metrics *observability.Metrics) []plugins.Plugin {
	var out []plugins.Plugin
	if pc := cfg.ADS; pc.Enabled {
		out = append(out, ads.New(ads.Config{
			BaseURL:    pc.BaseURL,
			Timeout:    pc.Timeout,
			Token:      pc.APIToken,
			MaxResults: pc.MaxResults,
			UserAgent:  cfg.UserAgent,
			Metrics:    metrics,
		}))
	}
	if pc := cfg.ArXiv; pc.Enabled {
		out = append(out, arxiv.New(arxiv.Config{
			BaseURL:    pc.BaseURL,
			Timeout:    pc.Timeout,
			MaxResults: pc.MaxResults,
			UserAgent:  cfg.UserAgent,
			Metrics:    metrics,
		}))
	}
	if pc := cfg.Inspire; pc.Enabled {
		out = append(out, inspire.New(inspire.Config{
			BaseURL:    pc.BaseURL,
			Timeout:    pc.Timeout,
			MaxResults: pc.MaxResults,
			UserAgent:  cfg.UserAgent,
			Metrics:    metrics,
		}))
	}
	return out
}

// Close shuts the plugins down and closes the stores.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, r := range a.Manager.Shutdown(ctx) {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("shutdown plugin %s: %w", r.PluginID, r.Err))
		}
	}
	errs = append(errs, a.closeStores())
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close library: %w", err))
		}
	}
	if a.Credentials != nil {
		if err := a.Credentials.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close credentials: %w", err))
		}
	}
	return errors.Join(errs...)
}
