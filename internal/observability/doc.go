// Package observability provides logging and metrics support for paperhub.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stderr",
//	})
//	logger = observability.WithPluginContext(logger, "ads")
//	logger.Info().Msg("plugin initialized")
//
// # Metrics
//
// NewMetrics registers collectors with the default Prometheus registry under
// the given namespace. Components accept a *Metrics and tolerate nil:
//
//	metrics := observability.NewMetrics("paperhub")
//	metrics.RecordSearchStarted("arxiv")
//
// # Context
//
// Request and plugin IDs travel on context.Context and are attached to log
// lines with LoggerFromContext.
package observability
