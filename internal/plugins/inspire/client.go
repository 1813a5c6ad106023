// Package inspire implements the INSPIRE-HEP source plugin. The REST API is
// public and returns JSON records keyed by numeric record IDs (recids).
package inspire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
	"github.com/helixir/paperhub/internal/observability"
	"github.com/helixir/paperhub/internal/plugins"
)

const (
	// ID is the plugin ID.
	ID = "inspire"

	// DefaultBaseURL is the INSPIRE REST API base URL.
	DefaultBaseURL = "https://inspirehep.net/api"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the largest page INSPIRE serves.
	MaxPageSize = 1000

	recordURL = "https://inspirehep.net/literature/"
)

// recordFields limits search and record responses to what papers need.
var recordFields = strings.Join([]string{
	"control_number", "titles", "authors.full_name", "abstracts", "dois",
	"arxiv_eprints", "citation_count", "publication_info", "keywords", "earliest_date",
}, ",")

// Config holds configuration for the INSPIRE client.
type Config struct {
	// BaseURL is the INSPIRE API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxResults caps the page size of a single request.
	MaxResults int

	// UserAgent overrides the shared User-Agent header.
	UserAgent string

	// Metrics records HTTP requests. May be nil.
	Metrics *observability.Metrics
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResults <= 0 || c.MaxResults > MaxPageSize {
		c.MaxResults = MaxPageSize
	}
}

// Client is the INSPIRE source plugin.
type Client struct {
	config     Config
	httpClient *plugins.HTTPClient
	logger     zerolog.Logger
}

// Ensure Client implements every capability it declares.
var (
	_ plugins.Plugin          = (*Client)(nil)
	_ plugins.Searcher        = (*Client)(nil)
	_ plugins.RecordGetter    = (*Client)(nil)
	_ plugins.DOIResolver     = (*Client)(nil)
	_ plugins.ArxivResolver   = (*Client)(nil)
	_ plugins.ReferenceLister = (*Client)(nil)
	_ plugins.CitationLister  = (*Client)(nil)
	_ plugins.PDFSourceFinder = (*Client)(nil)
	_ plugins.BibtexExporter  = (*Client)(nil)
	_ plugins.BatchGetter     = (*Client)(nil)
)

// New creates an INSPIRE client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := plugins.NewHTTPClient(plugins.HTTPClientConfig{
		PluginID:  ID,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		Metrics:   cfg.Metrics,
	})
	return NewWithHTTPClient(cfg, httpClient)
}

// NewWithHTTPClient creates an INSPIRE client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *plugins.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     zerolog.Nop(),
	}
}

// Descriptor returns the plugin identity.
func (c *Client) Descriptor() plugins.Descriptor {
	return plugins.Descriptor{
		ID:          ID,
		Name:        "INSPIRE-HEP",
		Icon:        "atom",
		Description: "INSPIRE high-energy physics literature database",
		Capabilities: plugins.Capabilities{
			Search: true, Lookup: true, References: true, Citations: true,
			PDFDownload: true, Bibtex: true, Metadata: true,
		},
		SearchCapabilities: plugins.SearchCapabilities{
			Fields:     []string{"title", "author", "abstract", "fullText"},
			Exact:      []string{"doi", "arxiv"},
			YearRange:  true,
			Keywords:   true,
			Raw:        true,
			Sorts:      []domain.SortField{domain.SortDate, domain.SortCitations, domain.SortRelevance},
			MaxResults: c.config.MaxResults,
		},
		NativeIdentifier: identifier.TypeInspire,
	}
}

// Initialize keeps the logger.
func (c *Client) Initialize(ctx context.Context, opts plugins.Options) error {
	c.logger = opts.Logger
	return nil
}

// Shutdown is a no-op.
func (c *Client) Shutdown(ctx context.Context) error {
	return nil
}

// ValidateAuth always succeeds: the API is public.
func (c *Client) ValidateAuth(ctx context.Context) bool {
	return true
}

// RateLimitStatus returns the last-known quota.
func (c *Client) RateLimitStatus() domain.RateLimitStatus {
	return c.httpClient.RateLimitStatus()
}

// Search queries INSPIRE for papers matching q.
func (c *Client) Search(ctx context.Context, q domain.UnifiedQuery) (*domain.SearchResult, error) {
	native := Translate(q)
	if strings.TrimSpace(native.Query) == "" {
		return nil, domain.NewValidationError("query", "no criteria INSPIRE can search on")
	}

	rows := native.Rows
	if rows > c.config.MaxResults {
		rows = c.config.MaxResults
	}
	resp, err := c.searchWindow(ctx, native.Query, native.Start, rows, native.Sort)
	if err != nil {
		return nil, err
	}

	logger := observability.WithQueryContext(c.logger, native.Query)
	logger.Debug().
		Int("found", resp.Hits.Total).
		Msg("inspire search completed")

	return &domain.SearchResult{
		TotalResults: resp.Hits.Total,
		Papers:       recordsToPapers(resp.Hits.Hits),
		Metadata: map[string]string{
			domain.MetaQuery: native.Query,
			domain.MetaSort:  native.SortString(),
		},
	}, nil
}

// searchWindow returns the hits in [offset, offset+rows). INSPIRE pages by
// page number, so an offset that is not a multiple of rows is served from a
// larger page that contains the whole window, or from two adjacent pages
// when no page size up to MaxResults does.
func (c *Client) searchWindow(ctx context.Context, q string, offset, rows int, sort string) (*searchResponse, error) {
	if page, size, skip, ok := pageWindow(offset, rows, c.config.MaxResults); ok {
		resp, err := c.search(ctx, q, size, page, sort)
		if err != nil {
			return nil, err
		}
		resp.Hits.Hits = window(resp.Hits.Hits, skip, rows)
		return resp, nil
	}

	page := offset/rows + 1
	first, err := c.search(ctx, q, rows, page, sort)
	if err != nil {
		return nil, err
	}
	second, err := c.search(ctx, q, rows, page+1, sort)
	if err != nil {
		return nil, err
	}
	first.Hits.Hits = window(append(first.Hits.Hits, second.Hits.Hits...), offset%rows, rows)
	return first, nil
}

// pageWindow picks the smallest page size of at least rows whose page holds
// all of [offset, offset+rows). page is 1-based; skip is the window's start
// within that page.
func pageWindow(offset, rows, maxSize int) (page, size, skip int, ok bool) {
	if offset < 0 {
		offset = 0
	}
	for size = rows; size > 0 && size <= maxSize; size++ {
		p := offset / size
		if (offset+rows-1)/size == p {
			return p + 1, size, offset - p*size, true
		}
	}
	return 0, 0, 0, false
}

func window(recs []record, skip, rows int) []record {
	if skip >= len(recs) {
		return nil
	}
	recs = recs[skip:]
	if len(recs) > rows {
		recs = recs[:rows]
	}
	return recs
}

func (c *Client) search(ctx context.Context, q string, size, page int, sort string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("size", strconv.Itoa(size))
	params.Set("page", strconv.Itoa(page))
	params.Set("fields", recordFields)
	if sort != "" {
		params.Set("sort", sort)
	}

	resp, err := c.httpClient.Get(ctx, "/literature", params, nil)
	if err != nil {
		return nil, fmt.Errorf("inspire search: %w", err)
	}
	var out searchResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// fetchRecord reads one record from a record endpoint. A 404 yields nil.
func (c *Client) fetchRecord(ctx context.Context, p string, fields string) (*record, error) {
	resp, err := c.httpClient.Do(ctx, plugins.Request{
		Path:     p,
		Query:    url.Values{"fields": {fields}},
		Endpoint: strings.SplitN(strings.TrimPrefix(p, "/"), "/", 2)[0],
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("inspire record: %w", err)
	}
	var out record
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) paperAt(ctx context.Context, p string) (*domain.Paper, error) {
	rec, err := c.fetchRecord(ctx, p, recordFields)
	if err != nil || rec == nil {
		return nil, err
	}
	return recordToPaper(rec.Metadata), nil
}

// GetRecord fetches a record by recid.
func (c *Client) GetRecord(ctx context.Context, recid string) (*domain.Paper, error) {
	return c.paperAt(ctx, "/literature/"+url.PathEscape(recid))
}

// GetByDOI fetches the record carrying doi.
func (c *Client) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	return c.paperAt(ctx, "/doi/"+doi)
}

// GetByArxiv fetches the record carrying an arXiv ID.
func (c *Client) GetByArxiv(ctx context.Context, arxivID string) (*domain.Paper, error) {
	return c.paperAt(ctx, "/arxiv/"+arxivID)
}

// GetBatch resolves several recids with one search.
func (c *Client) GetBatch(ctx context.Context, recids []string) ([]plugins.BatchItem, error) {
	ids := domain.DedupStrings(recids)
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := c.search(ctx, recidQuery(ids), len(ids), 1, "")
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Paper, len(resp.Hits.Hits))
	for _, p := range recordsToPapers(resp.Hits.Hits) {
		byID[p.SourceID] = p
	}
	items := make([]plugins.BatchItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, plugins.BatchItem{ID: id, Paper: byID[id]})
	}
	return items, nil
}

// GetReferences lists the references INSPIRE matched to its own records.
// Unmatched references have no recid and are left out.
func (c *Client) GetReferences(ctx context.Context, recid string, opts plugins.ListOptions) ([]*domain.Paper, error) {
	rec, err := c.fetchRecord(ctx, "/literature/"+url.PathEscape(recid), "references")
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.NewNotFoundError("record", recid)
	}

	limit := opts.EffectiveLimit()
	papers := make([]*domain.Paper, 0, len(rec.Metadata.References))
	for _, ref := range rec.Metadata.References {
		if len(papers) == limit {
			break
		}
		if p := referenceToPaper(ref); p != nil {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// GetCitations lists the records citing recid, most cited first.
func (c *Client) GetCitations(ctx context.Context, recid string, opts plugins.ListOptions) ([]*domain.Paper, error) {
	limit := opts.EffectiveLimit()
	if limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	resp, err := c.search(ctx, "refersto:recid:"+recid, limit, 1, "mostcited")
	if err != nil {
		return nil, err
	}
	return recordsToPapers(resp.Hits.Hits), nil
}

// GetPdfSources lists the record's attached full-text documents and its
// arXiv PDF.
func (c *Client) GetPdfSources(ctx context.Context, recid string) ([]domain.PdfSource, error) {
	rec, err := c.fetchRecord(ctx, "/literature/"+url.PathEscape(recid), "documents,arxiv_eprints")
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []domain.PdfSource{}, nil
	}

	var found []domain.PdfSource
	for _, doc := range rec.Metadata.Documents {
		if doc.Hidden || doc.URL == "" {
			continue
		}
		label := doc.Description
		if label == "" {
			label = "INSPIRE"
		}
		found = append(found, domain.PdfSource{
			Type:     domain.PdfInspire,
			URL:      doc.URL,
			Label:    label,
			Priority: domain.PriorityInspire,
		})
	}

	var arxivID string
	if len(rec.Metadata.ArxivEprints) > 0 {
		arxivID = rec.Metadata.ArxivEprints[0].Value
	}
	return plugins.MergePdfSources(found, arxivID), nil
}

// GetBibtex exports one record.
func (c *Client) GetBibtex(ctx context.Context, recid string) (string, error) {
	resp, err := c.httpClient.Do(ctx, plugins.Request{
		Path:     "/literature/" + url.PathEscape(recid),
		Query:    url.Values{"format": {"bibtex"}},
		Endpoint: "bibtex",
	})
	if err != nil {
		return "", fmt.Errorf("inspire bibtex: %w", err)
	}
	return strings.TrimSpace(string(resp.Body)), nil
}

// GetBibtexBatch exports several records keyed by citation key.
func (c *Client) GetBibtexBatch(ctx context.Context, recids []string) (map[string]string, error) {
	ids := domain.DedupStrings(recids)
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	params := url.Values{}
	params.Set("q", recidQuery(ids))
	params.Set("size", strconv.Itoa(len(ids)))
	params.Set("format", "bibtex")

	resp, err := c.httpClient.Do(ctx, plugins.Request{Path: "/literature", Query: params, Endpoint: "bibtex"})
	if err != nil {
		return nil, fmt.Errorf("inspire bibtex: %w", err)
	}
	return plugins.SplitBibtex(string(resp.Body)), nil
}

func recordsToPapers(recs []record) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(recs))
	for _, r := range recs {
		if p := recordToPaper(r.Metadata); p != nil {
			papers = append(papers, p)
		}
	}
	return papers
}

// recordToPaper converts record metadata. Records without a control number
// are skipped.
func recordToPaper(m metadata) *domain.Paper {
	if m.ControlNumber == 0 {
		return nil
	}
	recid := strconv.Itoa(m.ControlNumber)

	p := &domain.Paper{
		CitationCount: m.CitationCount,
		Source:        ID,
		SourceID:      recid,
		URL:           recordURL + recid,
		Identifiers:   domain.Identifiers{InspireID: recid},
	}
	if len(m.Titles) > 0 {
		p.Title = m.Titles[0].Title
	}
	for _, a := range m.Authors {
		if name := strings.TrimSpace(a.FullName); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	if len(m.Abstracts) > 0 {
		p.Abstract = m.Abstracts[0].Value
	}
	for _, kw := range m.Keywords {
		p.Keywords = append(p.Keywords, kw.Value)
	}
	if len(m.DOIs) > 0 {
		p.Identifiers.DOI = m.DOIs[0].Value
	}
	if len(m.ArxivEprints) > 0 {
		p.Identifiers.ArxivID = m.ArxivEprints[0].Value
	}

	if len(m.PublicationInfo) > 0 {
		pub := m.PublicationInfo[0]
		p.Journal = pub.JournalTitle
		p.Volume = pub.JournalVolume
		p.Pages = pages(pub)
		p.Year = pub.Year
	}
	if y := yearOf(m.EarliestDate); y > 0 {
		p.Year = y
	}

	p.Normalize()
	return p
}

func pages(pub publicationInfo) string {
	switch {
	case pub.PageStart != "" && pub.PageEnd != "":
		return pub.PageStart + "-" + pub.PageEnd
	case pub.PageStart != "":
		return pub.PageStart
	default:
		return pub.ArtID
	}
}

// yearOf parses the year of a "2019-05-01", "2019-05" or "2019" date.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func referenceToPaper(ref reference) *domain.Paper {
	if ref.Record.Ref == "" {
		return nil
	}
	recid := path.Base(ref.Record.Ref)
	if !identifier.IsInspire(recid) {
		return nil
	}

	r := ref.Reference
	p := &domain.Paper{
		Title:    r.Title.Title,
		Journal:  r.PublicationInfo.JournalTitle,
		Year:     r.PublicationInfo.Year,
		Source:   ID,
		SourceID: recid,
		URL:      recordURL + recid,
		Identifiers: domain.Identifiers{
			InspireID: recid,
			ArxivID:   r.ArxivEprint,
		},
	}
	for _, a := range r.Authors {
		p.Authors = append(p.Authors, a.FullName)
	}
	if len(r.DOIs) > 0 {
		p.Identifiers.DOI = r.DOIs[0]
	}
	p.Normalize()
	return p
}
