// Package arxiv implements the arXiv source plugin on top of the public
// Atom API. arXiv needs no credential.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
	"github.com/helixir/paperhub/internal/observability"
	"github.com/helixir/paperhub/internal/plugins"
	"github.com/helixir/paperhub/internal/query"
)

const (
	// ID is the plugin ID.
	ID = "arxiv"

	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100

	// maxResultsCeiling is the largest page the API serves.
	maxResultsCeiling = 2000
)

// arxivIDRegex extracts the arXiv ID from the full URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// versionSuffix matches a trailing version, "v2".
var versionSuffix = regexp.MustCompile(`v\d+$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxResults is the maximum results to return per search request.
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
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.MaxResults > maxResultsCeiling {
		c.MaxResults = maxResultsCeiling
	}
}

// Client is the arXiv source plugin.
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
	_ plugins.ArxivResolver   = (*Client)(nil)
	_ plugins.PDFSourceFinder = (*Client)(nil)
	_ plugins.BatchGetter     = (*Client)(nil)
)

// New creates a new arXiv client with the given configuration.
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

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
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
		Name:        "arXiv",
		Icon:        "file-text",
		Description: "arXiv preprint server",
		Capabilities: plugins.Capabilities{
			Search: true, Lookup: true, PDFDownload: true, Metadata: true,
		},
		SearchCapabilities: plugins.SearchCapabilities{
			Fields:     []string{"title", "author", "abstract", "fullText"},
			Exact:      []string{"arxiv"},
			YearRange:  true,
			Keywords:   true,
			Raw:        true,
			Sorts:      []domain.SortField{domain.SortDate, domain.SortRelevance},
			MaxResults: c.config.MaxResults,
		},
		NativeIdentifier: identifier.TypeArxiv,
	}
}

// Initialize keeps the logger. arXiv has no credential to load.
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

// Search queries arXiv for papers matching q.
func (c *Client) Search(ctx context.Context, q domain.UnifiedQuery) (*domain.SearchResult, error) {
	native := Translate(q)
	if strings.TrimSpace(native.Query) == "" {
		return nil, domain.NewValidationError("query", "no criteria arXiv can search on")
	}

	rows := native.Rows
	if rows > c.config.MaxResults {
		rows = c.config.MaxResults
	}

	params := url.Values{}
	if native.Exact == query.ExactArxiv {
		params.Set("id_list", native.Query)
	} else {
		params.Set("search_query", native.Query)
	}
	params.Set("max_results", strconv.Itoa(rows))
	if native.Start > 0 {
		params.Set("start", strconv.Itoa(native.Start))
	}
	params.Set("sortBy", native.Sort)
	params.Set("sortOrder", native.Order)

	feed, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	logger := observability.WithQueryContext(c.logger, native.Query)
	logger.Debug().
		Int("found", feed.TotalResults).
		Msg("arxiv search completed")

	return &domain.SearchResult{
		TotalResults: feed.TotalResults,
		Papers:       c.entriesToPapers(feed.Entries),
		Metadata: map[string]string{
			domain.MetaQuery: native.Query,
			domain.MetaSort:  native.SortString(),
		},
	}, nil
}

// fetch runs one API query and decodes the Atom feed.
func (c *Client) fetch(ctx context.Context, params url.Values) (*Feed, error) {
	resp, err := c.httpClient.Get(ctx, "/query", params, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv query: %w", err)
	}

	var feed Feed
	if err := xml.Unmarshal(resp.Body, &feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &feed, nil
}

// GetRecord retrieves a paper by its arXiv ID.
func (c *Client) GetRecord(ctx context.Context, id string) (*domain.Paper, error) {
	return c.GetByArxiv(ctx, id)
}

// GetByArxiv retrieves a paper by its arXiv ID. Unknown IDs yield (nil, nil).
func (c *Client) GetByArxiv(ctx context.Context, arxivID string) (*domain.Paper, error) {
	feed, err := c.fetch(ctx, url.Values{"id_list": {arxivID}, "max_results": {"1"}})
	if err != nil {
		return nil, err
	}
	papers := c.entriesToPapers(feed.Entries)
	if len(papers) == 0 {
		return nil, nil
	}
	return papers[0], nil
}

// GetBatch retrieves several papers with one id_list query.
func (c *Client) GetBatch(ctx context.Context, ids []string) ([]plugins.BatchItem, error) {
	ids = domain.DedupStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	feed, err := c.fetch(ctx, url.Values{
		"id_list":     {strings.Join(ids, ",")},
		"max_results": {strconv.Itoa(len(ids))},
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Paper, len(feed.Entries))
	for _, p := range c.entriesToPapers(feed.Entries) {
		byID[p.SourceID] = p
	}
	items := make([]plugins.BatchItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, plugins.BatchItem{ID: id, Paper: byID[stripVersion(id)]})
	}
	return items, nil
}

// GetPdfSources returns the arXiv PDF location. Every arXiv record has one,
// so no request is made.
func (c *Client) GetPdfSources(ctx context.Context, arxivID string) ([]domain.PdfSource, error) {
	if strings.TrimSpace(arxivID) == "" {
		return nil, domain.ErrNoIdentifier
	}
	return plugins.MergePdfSources(nil, arxivID), nil
}

func (c *Client) entriesToPapers(entries []Entry) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(entries))
	for i := range entries {
		if paper := c.entryToPaper(&entries[i]); paper != nil {
			papers = append(papers, paper)
		}
	}
	return papers
}

// entryToPaper converts an arXiv Atom entry to a domain Paper. Error entries,
// which carry no abs URL, yield nil.
func (c *Client) entryToPaper(entry *Entry) *domain.Paper {
	if entry == nil {
		return nil
	}

	arxivID := extractArXivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	var year int
	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			year = t.Year()
		}
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}

	paper := &domain.Paper{
		// arXiv includes leading/trailing whitespace and newlines
		Title:    normalizeWhitespace(entry.Title),
		Abstract: normalizeWhitespace(entry.Summary),
		Authors:  authors,
		Year:     year,
		Journal:  normalizeWhitespace(entry.JournalRef),
		Keywords: categories,
		Identifiers: domain.Identifiers{
			ArxivID: arxivID,
			DOI:     strings.TrimSpace(entry.DOI),
		},
		Source:   ID,
		SourceID: arxivID,
		URL:      "https://arxiv.org/abs/" + arxivID,
	}
	paper.Normalize()
	return paper
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

func stripVersion(id string) string {
	return versionSuffix.ReplaceAllString(strings.TrimSpace(id), "")
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
