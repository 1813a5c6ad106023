package plugins

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/helixir/paperhub/internal/domain"
)

// FederatedResult holds per-plugin outcomes of a federated search. A plugin
// appears in exactly one of the two maps.
type FederatedResult struct {
	Results map[string]*domain.SearchResult
	Errors  map[string]error
}

// TotalPapers returns the number of papers across all successful results.
func (r *FederatedResult) TotalPapers() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Papers)
	}
	return n
}

// pluginResult holds the result of a search from one plugin.
type pluginResult struct {
	pluginID string
	result   *domain.SearchResult
	err      error
}

// resolve returns the enabled registration for pluginID ("" means the active
// plugin) and checks that it declares capability when one is given.
func (m *Manager) resolve(pluginID string, capability Capability) (Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id := pluginID
	if id == "" {
		id = m.activeID
		if id == "" {
			return Registration{}, domain.ErrNoActivePlugin
		}
	}
	reg, ok := m.plugins[id]
	if !ok {
		return Registration{}, domain.NewNotFoundError("plugin", id)
	}
	if !reg.Enabled {
		return Registration{}, pluginDisabledError(id)
	}
	if capability != "" && !reg.Plugin.Descriptor().Capabilities.Has(capability) {
		return Registration{}, domain.NewCapabilityError(id, string(capability))
	}
	return *reg, nil
}

// pace waits on the scheduler before a call to reg's plugin.
func (m *Manager) pace(ctx context.Context, reg Registration) error {
	if err := m.scheduler.Wait(ctx, reg.ID, reg.Plugin.RateLimitStatus()); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", reg.ID, err)
	}
	return nil
}

// Search runs q on the active plugin.
func (m *Manager) Search(ctx context.Context, q domain.UnifiedQuery) (*domain.SearchResult, error) {
	return m.SearchPlugin(ctx, "", q)
}

// SearchPlugin runs q on pluginID, or on the active plugin when pluginID is
// empty. Every returned paper's Source is set to the dispatching plugin.
func (m *Manager) SearchPlugin(ctx context.Context, pluginID string, q domain.UnifiedQuery) (*domain.SearchResult, error) {
	if q.IsEmpty() {
		return nil, domain.NewValidationError("query", "no search criteria given")
	}
	reg, err := m.resolve(pluginID, CapSearch)
	if err != nil {
		return nil, err
	}
	return m.searchOne(ctx, reg, q)
}

func (m *Manager) searchOne(ctx context.Context, reg Registration, q domain.UnifiedQuery) (*domain.SearchResult, error) {
	if err := m.pace(ctx, reg); err != nil {
		return nil, err
	}

	m.metrics.RecordSearchStarted(reg.ID)
	start := time.Now()

	result, err := reg.Plugin.(Searcher).Search(ctx, q)
	if err != nil {
		m.metrics.RecordSearchFailed(reg.ID, time.Since(start).Seconds())
		return nil, fmt.Errorf("search %s: %w", reg.ID, err)
	}
	if result == nil {
		result = &domain.SearchResult{}
	}
	tagResult(result, reg.ID)

	m.metrics.RecordSearchCompleted(reg.ID, len(result.Papers), time.Since(start).Seconds())
	return result, nil
}

// tagResult stamps every paper with the plugin that served it.
func tagResult(result *domain.SearchResult, pluginID string) {
	for _, p := range result.Papers {
		if p != nil {
			p.Source = pluginID
		}
	}
	if result.Metadata == nil {
		result.Metadata = make(map[string]string)
	}
	result.Metadata[domain.MetaSource] = pluginID
}

// FederatedSearch runs q concurrently on every enabled search-capable plugin
// and waits for all of them. One plugin's failure never affects the others.
func (m *Manager) FederatedSearch(ctx context.Context, q domain.UnifiedQuery) *FederatedResult {
	out := &FederatedResult{
		Results: make(map[string]*domain.SearchResult),
		Errors:  make(map[string]error),
	}
	regs := m.List(ListFilter{EnabledOnly: true, Capability: CapSearch})
	if len(regs) == 0 {
		return out
	}
	m.metrics.RecordFederatedSearch()

	if q.IsEmpty() {
		err := domain.NewValidationError("query", "no search criteria given")
		for _, reg := range regs {
			out.Errors[reg.ID] = err
		}
		return out
	}

	// Create result channel and wait group
	resultChan := make(chan pluginResult, len(regs))
	var wg sync.WaitGroup

	for _, reg := range regs {
		wg.Add(1)
		go func(r Registration) {
			defer wg.Done()
			res, err := m.searchOne(ctx, r, q)
			resultChan <- pluginResult{pluginID: r.ID, result: res, err: err}
		}(reg)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for pr := range resultChan {
		if pr.err != nil {
			m.logger.Warn().Err(pr.err).Str("plugin", pr.pluginID).Msg("federated search failed for plugin")
			out.Errors[pr.pluginID] = pr.err
			continue
		}
		out.Results[pr.pluginID] = pr.result
	}
	return out
}

// GetRecord fetches one record by the plugin's own ID. A nil paper with a
// nil error means not found.
func (m *Manager) GetRecord(ctx context.Context, pluginID, id string) (*domain.Paper, error) {
	reg, err := m.resolve(pluginID, CapLookup)
	if err != nil {
		return nil, err
	}
	if err := m.pace(ctx, reg); err != nil {
		return nil, err
	}
	p, err := reg.Plugin.(RecordGetter).GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get record %s from %s: %w", id, reg.ID, err)
	}
	if p != nil {
		p.Source = reg.ID
	}
	return p, nil
}

// GetBatch resolves ids on one plugin and reports per-item outcomes.
func (m *Manager) GetBatch(ctx context.Context, pluginID string, ids []string) ([]BatchItem, error) {
	reg, err := m.resolve(pluginID, CapMetadata)
	if err != nil {
		return nil, err
	}
	if err := m.pace(ctx, reg); err != nil {
		return nil, err
	}
	items, err := reg.Plugin.(BatchGetter).GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("batch from %s: %w", reg.ID, err)
	}
	for _, it := range items {
		if it.Paper != nil {
			it.Paper.Source = reg.ID
		}
		if it.Err != nil {
			m.logger.Debug().Err(it.Err).Str("plugin", reg.ID).Str("id", it.ID).Msg("batch item unresolved")
		}
	}
	return items, nil
}

// GetReferences lists the works cited by a record.
func (m *Manager) GetReferences(ctx context.Context, pluginID, id string, opts ListOptions) ([]*domain.Paper, error) {
	reg, err := m.resolve(pluginID, CapReferences)
	if err != nil {
		return nil, err
	}
	if err := m.pace(ctx, reg); err != nil {
		return nil, err
	}
	papers, err := reg.Plugin.(ReferenceLister).GetReferences(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("references of %s from %s: %w", id, reg.ID, err)
	}
	return capPapers(papers, opts.EffectiveLimit()), nil
}

// GetCitations lists the works citing a record.
func (m *Manager) GetCitations(ctx context.Context, pluginID, id string, opts ListOptions) ([]*domain.Paper, error) {
	reg, err := m.resolve(pluginID, CapCitations)
	if err != nil {
		return nil, err
	}
	if err := m.pace(ctx, reg); err != nil {
		return nil, err
	}
	papers, err := reg.Plugin.(CitationLister).GetCitations(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("citations of %s from %s: %w", id, reg.ID, err)
	}
	return capPapers(papers, opts.EffectiveLimit()), nil
}

func capPapers(papers []*domain.Paper, limit int) []*domain.Paper {
	if len(papers) > limit {
		return papers[:limit]
	}
	return papers
}

// GetBibtex exports one record as BibTeX.
func (m *Manager) GetBibtex(ctx context.Context, pluginID, id string) (string, error) {
	reg, err := m.resolve(pluginID, CapBibtex)
	if err != nil {
		return "", err
	}
	if err := m.pace(ctx, reg); err != nil {
		return "", err
	}
	bib, err := reg.Plugin.(BibtexExporter).GetBibtex(ctx, id)
	if err != nil {
		return "", fmt.Errorf("bibtex for %s from %s: %w", id, reg.ID, err)
	}
	return bib, nil
}

// GetBibtexBatch exports several records, keyed by citation key.
func (m *Manager) GetBibtexBatch(ctx context.Context, pluginID string, ids []string) (map[string]string, error) {
	reg, err := m.resolve(pluginID, CapBibtex)
	if err != nil {
		return nil, err
	}
	if err := m.pace(ctx, reg); err != nil {
		return nil, err
	}
	entries, err := reg.Plugin.(BibtexExporter).GetBibtexBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("bibtex batch from %s: %w", reg.ID, err)
	}
	return entries, nil
}

// ValidateAuth checks a plugin's credential against its source.
func (m *Manager) ValidateAuth(ctx context.Context, pluginID string) (bool, error) {
	reg, err := m.resolve(pluginID, "")
	if err != nil {
		return false, err
	}
	if err := m.pace(ctx, reg); err != nil {
		return false, err
	}
	return reg.Plugin.ValidateAuth(ctx), nil
}
