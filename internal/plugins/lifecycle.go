package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
	"github.com/helixir/paperhub/internal/observability"
)

// LifecycleResult is one plugin's outcome of Initialize or Shutdown.
type LifecycleResult struct {
	PluginID string `json:"pluginId"`
	Err      error  `json:"-"`
}

// PluginFailure records a plugin that failed during a best-effort fan-out.
type PluginFailure struct {
	PluginID string `json:"pluginId"`
	Err      error  `json:"-"`
}

// PdfSourcesResult is the outcome of Manager.GetPdfSources.
type PdfSourcesResult struct {
	Sources  []domain.PdfSource
	Failures []PluginFailure
}

// Initialize calls Initialize on every registered plugin concurrently. A
// plugin that fails is disabled but stays registered.
func (m *Manager) Initialize(ctx context.Context) []LifecycleResult {
	regs := m.List(ListFilter{})
	results := m.fanOut(regs, func(reg Registration) error {
		opts := Options{
			Credentials: m.credentials,
			Logger:      observability.WithPluginContext(m.logger, reg.ID),
		}
		return reg.Plugin.Initialize(ctx, opts)
	})

	for _, r := range results {
		if r.Err == nil {
			continue
		}
		m.logger.Error().Err(r.Err).Str("plugin", r.PluginID).Msg("plugin initialization failed, disabling")

		m.mu.Lock()
		var events []Event
		m.disableLocked(r.PluginID, &events)
		m.mu.Unlock()
		m.publish(events)
	}
	return results
}

// Shutdown calls Shutdown on every registered plugin concurrently, then
// clears the registry and the active plugin. Failures are logged and
// reported but never stop other plugins from shutting down.
func (m *Manager) Shutdown(ctx context.Context) []LifecycleResult {
	regs := m.List(ListFilter{})
	results := m.fanOut(regs, func(reg Registration) error {
		return reg.Plugin.Shutdown(ctx)
	})
	for _, r := range results {
		if r.Err != nil {
			m.logger.Warn().Err(r.Err).Str("plugin", r.PluginID).Msg("plugin shutdown failed")
		}
	}

	m.mu.Lock()
	events := make([]Event, 0, len(m.order)+1)
	for _, id := range m.order {
		events = append(events, newEvent(EventUnregistered, id, ""))
		m.scheduler.Forget(id)
	}
	if m.activeID != "" {
		events = append(events, m.setActiveLocked(""))
	}
	m.plugins = make(map[string]*Registration)
	m.order = nil
	m.mu.Unlock()

	m.metrics.SetPluginsRegistered(0)
	m.publish(events)
	return results
}

// fanOut runs fn for every registration concurrently and returns results in
// registration order.
func (m *Manager) fanOut(regs []Registration, fn func(Registration) error) []LifecycleResult {
	results := make([]LifecycleResult, len(regs))
	var wg sync.WaitGroup
	for i, reg := range regs {
		wg.Add(1)
		go func(i int, reg Registration) {
			defer wg.Done()
			results[i] = LifecycleResult{PluginID: reg.ID, Err: safeCall(reg.ID, func() error { return fn(reg) })}
		}(i, reg)
	}
	wg.Wait()
	return results
}

// safeCall converts a panicking plugin hook into an error.
func safeCall(pluginID string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", pluginID, r)
		}
	}()
	return fn()
}

// GetPdfSources finds PDF locations for paper. The plugin that produced the
// paper is asked first when it can download PDFs; if it is unavailable or
// fails, every enabled PDF-capable plugin is asked and the results are
// concatenated. Plugin failures are collected, never returned.
func (m *Manager) GetPdfSources(ctx context.Context, paper *domain.Paper) *PdfSourcesResult {
	result := &PdfSourcesResult{}
	if paper == nil {
		return result
	}

	var tried string
	if paper.Source != "" {
		if preferred, err := m.resolve(paper.Source, CapPDFDownload); err == nil {
			sources, err := m.pdfSourcesFrom(ctx, preferred, paper)
			if err == nil {
				result.Sources = sources
				return result
			}
			tried = preferred.ID
			result.Failures = append(result.Failures, PluginFailure{PluginID: preferred.ID, Err: err})
			m.logger.Warn().Err(err).Str("plugin", preferred.ID).Msg("preferred pdf source lookup failed, asking all plugins")
		}
	}

	regs := m.List(ListFilter{EnabledOnly: true, Capability: CapPDFDownload})
	type outcome struct {
		sources []domain.PdfSource
		err     error
	}
	outcomes := make([]outcome, len(regs))

	var wg sync.WaitGroup
	for i, reg := range regs {
		if reg.ID == tried {
			continue
		}
		wg.Add(1)
		go func(i int, reg Registration) {
			defer wg.Done()
			sources, err := m.pdfSourcesFrom(ctx, reg, paper)
			outcomes[i] = outcome{sources: sources, err: err}
		}(i, reg)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	for i, o := range outcomes {
		if o.err != nil {
			result.Failures = append(result.Failures, PluginFailure{PluginID: regs[i].ID, Err: o.err})
			m.logger.Debug().Err(o.err).Str("plugin", regs[i].ID).Msg("pdf source lookup failed")
			continue
		}
		for _, s := range o.sources {
			if _, dup := seen[s.URL]; dup {
				continue
			}
			seen[s.URL] = struct{}{}
			result.Sources = append(result.Sources, s)
		}
	}
	return result
}

func (m *Manager) pdfSourcesFrom(ctx context.Context, reg Registration, paper *domain.Paper) ([]domain.PdfSource, error) {
	id := NativeID(reg.Plugin.Descriptor(), paper)
	if id == "" {
		return nil, fmt.Errorf("%s: %w", reg.ID, domain.ErrNoIdentifier)
	}
	if err := m.pace(ctx, reg); err != nil {
		return nil, err
	}
	return reg.Plugin.(PDFSourceFinder).GetPdfSources(ctx, id)
}

// NativeID picks the ID a plugin should receive for paper: the paper's own
// SourceID when the plugin produced it, otherwise the identifier of the
// plugin's native type.
func NativeID(desc Descriptor, paper *domain.Paper) string {
	if paper.Source == desc.ID && paper.SourceID != "" {
		return paper.SourceID
	}
	ids := paper.Identifiers
	switch desc.NativeIdentifier {
	case identifier.TypeBibcode:
		return ids.Bibcode
	case identifier.TypeArxiv:
		return ids.ArxivID
	case identifier.TypeInspire:
		return ids.InspireID
	case identifier.TypeDOI:
		return ids.DOI
	default:
		return ""
	}
}
