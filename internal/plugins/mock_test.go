package plugins

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
)

// basePlugin implements only the base Plugin contract.
type basePlugin struct {
	desc Descriptor
}

func (b *basePlugin) Descriptor() Descriptor                             { return b.desc }
func (b *basePlugin) Initialize(ctx context.Context, opts Options) error { return nil }
func (b *basePlugin) Shutdown(ctx context.Context) error                 { return nil }
func (b *basePlugin) ValidateAuth(ctx context.Context) bool              { return true }
func (b *basePlugin) RateLimitStatus() domain.RateLimitStatus {
	return domain.RateLimitStatus{Remaining: 1, Limit: 1}
}

// mockPlugin implements every capability interface; behavior is customized
// through func fields.
type mockPlugin struct {
	desc Descriptor

	initFunc       func(ctx context.Context, opts Options) error
	shutdownFunc   func(ctx context.Context) error
	searchFunc     func(ctx context.Context, q domain.UnifiedQuery) (*domain.SearchResult, error)
	getRecordFunc  func(ctx context.Context, id string) (*domain.Paper, error)
	getByDOIFunc   func(ctx context.Context, doi string) (*domain.Paper, error)
	getByArxivFunc func(ctx context.Context, id string) (*domain.Paper, error)
	pdfFunc        func(ctx context.Context, id string) ([]domain.PdfSource, error)
	status         domain.RateLimitStatus

	// Track calls for verification
	initCalls     atomic.Int32
	shutdownCalls atomic.Int32
	searchCalls   atomic.Int32
	getRecordIDs  []string
	pdfIDs        []string
	searchTimes   []time.Time
}

func newMockPlugin(id string, caps Capabilities) *mockPlugin {
	return &mockPlugin{
		desc: Descriptor{
			ID:               id,
			Name:             "Mock " + id,
			Capabilities:     caps,
			NativeIdentifier: identifier.TypeBibcode,
		},
		status: domain.RateLimitStatus{Remaining: 100, Limit: 100},
	}
}

func allCaps() Capabilities {
	return Capabilities{Search: true, Lookup: true, References: true, Citations: true, PDFDownload: true, Bibtex: true, Metadata: true}
}

func (m *mockPlugin) Descriptor() Descriptor { return m.desc }

func (m *mockPlugin) Initialize(ctx context.Context, opts Options) error {
	m.initCalls.Add(1)
	if m.initFunc != nil {
		return m.initFunc(ctx, opts)
	}
	return nil
}

func (m *mockPlugin) Shutdown(ctx context.Context) error {
	m.shutdownCalls.Add(1)
	if m.shutdownFunc != nil {
		return m.shutdownFunc(ctx)
	}
	return nil
}

func (m *mockPlugin) ValidateAuth(ctx context.Context) bool { return true }

func (m *mockPlugin) RateLimitStatus() domain.RateLimitStatus { return m.status }

func (m *mockPlugin) Search(ctx context.Context, q domain.UnifiedQuery) (*domain.SearchResult, error) {
	m.searchCalls.Add(1)
	m.searchTimes = append(m.searchTimes, time.Now())
	if m.searchFunc != nil {
		return m.searchFunc(ctx, q)
	}
	return &domain.SearchResult{
		TotalResults: 1,
		Papers:       []*domain.Paper{{Title: "from " + m.desc.ID, Source: "someone-else", SourceID: "1"}},
	}, nil
}

func (m *mockPlugin) GetRecord(ctx context.Context, id string) (*domain.Paper, error) {
	m.getRecordIDs = append(m.getRecordIDs, id)
	if m.getRecordFunc != nil {
		return m.getRecordFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPlugin) GetReferences(ctx context.Context, id string, opts ListOptions) ([]*domain.Paper, error) {
	papers := make([]*domain.Paper, 0, 300)
	for i := 0; i < 300; i++ {
		papers = append(papers, &domain.Paper{Title: "ref", Source: m.desc.ID, SourceID: id})
	}
	return papers, nil
}

func (m *mockPlugin) GetCitations(ctx context.Context, id string, opts ListOptions) ([]*domain.Paper, error) {
	return []*domain.Paper{{Title: "citing", Source: m.desc.ID, SourceID: "c1"}}, nil
}

func (m *mockPlugin) GetPdfSources(ctx context.Context, id string) ([]domain.PdfSource, error) {
	m.pdfIDs = append(m.pdfIDs, id)
	if m.pdfFunc != nil {
		return m.pdfFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPlugin) GetBibtex(ctx context.Context, id string) (string, error) {
	return "@article{" + id + ",\n}", nil
}

func (m *mockPlugin) GetBibtexBatch(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = "@article{" + id + ",\n}"
	}
	return out, nil
}

func (m *mockPlugin) GetBatch(ctx context.Context, ids []string) ([]BatchItem, error) {
	items := make([]BatchItem, 0, len(ids))
	for _, id := range ids {
		if id == "missing" {
			items = append(items, BatchItem{ID: id})
			continue
		}
		items = append(items, BatchItem{ID: id, Paper: &domain.Paper{Title: id, SourceID: id}})
	}
	return items, nil
}

// doiPlugin adds a DOI resolver to mockPlugin.
type doiPlugin struct {
	*mockPlugin
}

func (d doiPlugin) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	return d.getByDOIFunc(ctx, doi)
}

// arxivPlugin adds an arXiv resolver to mockPlugin.
type arxivPlugin struct {
	*mockPlugin
}

func (a arxivPlugin) GetByArxiv(ctx context.Context, id string) (*domain.Paper, error) {
	return a.getByArxivFunc(ctx, id)
}

func newTestManager() *Manager {
	return NewManager(ManagerConfig{
		Logger:    zerolog.Nop(),
		Scheduler: NewScheduler(SchedulerConfig{DefaultDelay: time.Nanosecond, Delays: map[string]time.Duration{"ads": 0, "arxiv": 0, "inspire": 0}}),
	})
}
