// Package ads implements the NASA Astrophysics Data System source plugin.
// Every ADS endpoint requires a personal API token, sent as a bearer token.
package ads

import (
	"context"
	"errors"
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
	ID = "ads"

	// DefaultBaseURL is the ADS API base URL.
	DefaultBaseURL = "https://api.adsabs.harvard.edu/v1"

	// CredentialKey is the credential store key for the API token.
	CredentialKey = "ads_api_token"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRows is the largest page ADS returns.
	MaxRows = 2000

	// DailyQuota is the default daily request quota of an ADS token.
	DailyQuota = 5000

	// abstractURL is the ADS UI page of a record.
	abstractURL = "https://ui.adsabs.harvard.edu/abs/%s/abstract"
)

// searchFields is the Solr field list requested for every record.
var searchFields = strings.Join([]string{
	"bibcode", "title", "author", "year", "pub", "volume", "page",
	"abstract", "keyword", "citation_count", "doi", "identifier",
}, ",")

// arxivLinkRegex pulls an arXiv ID out of an arxiv.org abs or pdf URL.
var arxivLinkRegex = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/([^?#]+?)(?:\.pdf)?$`)

// Config holds configuration for the ADS client.
type Config struct {
	// BaseURL is the ADS API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// Token is used when the credential store has no token.
	Token string

	// MaxResults caps the rows of a single search request.
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
	if c.MaxResults <= 0 || c.MaxResults > MaxRows {
		c.MaxResults = MaxRows
	}
}

// Client is the ADS source plugin.
type Client struct {
	config     Config
	httpClient *plugins.HTTPClient
	token      plugins.Token
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

// New creates an ADS client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := plugins.NewHTTPClient(plugins.HTTPClientConfig{
		PluginID:   ID,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		QuotaLimit: DailyQuota,
		UserAgent:  cfg.UserAgent,
		Metrics:    cfg.Metrics,
	})
	return NewWithHTTPClient(cfg, httpClient)
}

// NewWithHTTPClient creates an ADS client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *plugins.HTTPClient) *Client {
	cfg.applyDefaults()

	c := &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     zerolog.Nop(),
	}
	c.token.Set(cfg.Token)
	return c
}

// Descriptor returns the plugin identity.
func (c *Client) Descriptor() plugins.Descriptor {
	return plugins.Descriptor{
		ID:          ID,
		Name:        "NASA ADS",
		Icon:        "telescope",
		Description: "NASA Astrophysics Data System: astronomy and physics literature",
		Capabilities: plugins.Capabilities{
			Search: true, Lookup: true, References: true, Citations: true,
			PDFDownload: true, Bibtex: true, Metadata: true,
		},
		SearchCapabilities: plugins.SearchCapabilities{
			Fields:     []string{"title", "author", "abstract", "fullText"},
			Exact:      []string{"bibcode", "doi", "arxiv"},
			YearRange:  true,
			Keywords:   true,
			Raw:        true,
			Sorts:      []domain.SortField{domain.SortDate, domain.SortCitations, domain.SortRelevance},
			MaxResults: c.config.MaxResults,
		},
		Auth: plugins.AuthDescriptor{
			Required:      true,
			CredentialKey: CredentialKey,
			Description:   "ADS API token",
			SignupURL:     "https://ui.adsabs.harvard.edu/user/settings/token",
		},
		NativeIdentifier: identifier.TypeBibcode,
	}
}

// Initialize loads the API token from the credential store, keeping the
// configured token when the store has none.
func (c *Client) Initialize(ctx context.Context, opts plugins.Options) error {
	c.logger = opts.Logger
	if c.config.Token != "" && c.token.Get() == "" {
		c.token.Set(c.config.Token)
	}
	if err := c.token.Load(ctx, opts.Credentials, CredentialKey); err != nil {
		return err
	}
	if c.token.Get() == "" {
		c.logger.Warn().Msg("no ADS API token configured; authenticated calls will fail")
	}
	return nil
}

// Shutdown clears the token.
func (c *Client) Shutdown(ctx context.Context) error {
	c.token.Clear()
	return nil
}

// ValidateAuth issues a one-row query with the configured token.
func (c *Client) ValidateAuth(ctx context.Context) bool {
	headers, err := c.authHeaders()
	if err != nil {
		return false
	}
	params := url.Values{"q": {"*:*"}, "rows": {"1"}, "fl": {"bibcode"}}
	_, err = c.httpClient.Get(ctx, "/search/query", params, headers)
	return err == nil
}

// RateLimitStatus returns the quota from the last response headers.
func (c *Client) RateLimitStatus() domain.RateLimitStatus {
	return c.httpClient.RateLimitStatus()
}

func (c *Client) authHeaders() (map[string]string, error) {
	tok, err := c.token.Require(ID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + tok}, nil
}

// Search queries ADS for papers matching q.
func (c *Client) Search(ctx context.Context, q domain.UnifiedQuery) (*domain.SearchResult, error) {
	native := Translate(q)
	if strings.TrimSpace(native.Query) == "" {
		return nil, domain.NewValidationError("query", "no criteria ADS can search on")
	}
	rows := native.Rows
	if rows > c.config.MaxResults {
		rows = c.config.MaxResults
	}

	resp, err := c.query(ctx, native.Query, rows, native.Start, native.SortString())
	if err != nil {
		return nil, err
	}

	logger := observability.WithQueryContext(c.logger, native.Query)
	logger.Debug().
		Int("found", resp.Response.NumFound).
		Msg("ads search completed")

	return &domain.SearchResult{
		TotalResults: resp.Response.NumFound,
		Papers:       docsToPapers(resp.Response.Docs),
		Metadata: map[string]string{
			domain.MetaQuery: native.Query,
			domain.MetaSort:  native.SortString(),
		},
	}, nil
}

// query runs one Solr query.
func (c *Client) query(ctx context.Context, q string, rows, start int, sort string) (*searchResponse, error) {
	headers, err := c.authHeaders()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("fl", searchFields)
	params.Set("rows", strconv.Itoa(rows))
	if start > 0 {
		params.Set("start", strconv.Itoa(start))
	}
	if sort != "" {
		params.Set("sort", sort)
	}

	resp, err := c.httpClient.Get(ctx, "/search/query", params, headers)
	if err != nil {
		return nil, fmt.Errorf("ads search: %w", err)
	}
	var out searchResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// first returns the first record matching q, or nil.
func (c *Client) first(ctx context.Context, q string) (*domain.Paper, error) {
	resp, err := c.query(ctx, q, 1, 0, "")
	if err != nil {
		return nil, err
	}
	if len(resp.Response.Docs) == 0 {
		return nil, nil
	}
	return docToPaper(resp.Response.Docs[0]), nil
}

// GetRecord fetches a record by bibcode.
func (c *Client) GetRecord(ctx context.Context, bibcode string) (*domain.Paper, error) {
	return c.first(ctx, bibcodeQuery(bibcode))
}

// GetByDOI fetches the record carrying doi.
func (c *Client) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	return c.first(ctx, Syntax.Exact[query.ExactDOI](doi))
}

// GetByArxiv fetches the record carrying an arXiv ID.
func (c *Client) GetByArxiv(ctx context.Context, arxivID string) (*domain.Paper, error) {
	return c.first(ctx, Syntax.Exact[query.ExactArxiv](arxivID))
}

// GetBatch resolves several bibcodes in one query.
func (c *Client) GetBatch(ctx context.Context, bibcodes []string) ([]plugins.BatchItem, error) {
	ids := domain.DedupStrings(bibcodes)
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := c.query(ctx, bibcodesQuery(ids), len(ids), 0, "")
	if err != nil {
		return nil, err
	}

	byBibcode := make(map[string]*domain.Paper, len(resp.Response.Docs))
	for _, d := range resp.Response.Docs {
		byBibcode[d.Bibcode] = docToPaper(d)
	}
	items := make([]plugins.BatchItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, plugins.BatchItem{ID: id, Paper: byBibcode[id]})
	}
	return items, nil
}

// GetReferences lists the works a record cites.
func (c *Client) GetReferences(ctx context.Context, bibcode string, opts plugins.ListOptions) ([]*domain.Paper, error) {
	return c.list(ctx, "references("+bibcodeQuery(bibcode)+")", opts)
}

// GetCitations lists the works citing a record, most cited first.
func (c *Client) GetCitations(ctx context.Context, bibcode string, opts plugins.ListOptions) ([]*domain.Paper, error) {
	return c.list(ctx, "citations("+bibcodeQuery(bibcode)+")", opts)
}

func (c *Client) list(ctx context.Context, q string, opts plugins.ListOptions) ([]*domain.Paper, error) {
	limit := opts.EffectiveLimit()
	if limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	resp, err := c.query(ctx, q, limit, 0, "citation_count desc")
	if err != nil {
		return nil, err
	}
	return docsToPapers(resp.Response.Docs), nil
}

// GetPdfSources reads the record's electronic sources from the link resolver.
// A record unknown to the resolver has no sources.
func (c *Client) GetPdfSources(ctx context.Context, bibcode string) ([]domain.PdfSource, error) {
	headers, err := c.authHeaders()
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(ctx, plugins.Request{
		Path:     "/resolver/" + url.PathEscape(bibcode) + "/esource",
		Headers:  headers,
		Endpoint: "resolver",
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.PdfSource{}, nil
		}
		return nil, fmt.Errorf("ads esource: %w", err)
	}

	var body esourceResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, err
	}

	records := body.Links.Records
	if len(records) == 0 && body.Link != "" {
		records = []linkRecord{{URL: body.Link, LinkType: body.LinkType}}
	}
	found, arxivID := linksToSources(records)
	return plugins.MergePdfSources(found, arxivID), nil
}

// linksToSources maps resolver links to PDF sources and reports any arXiv
// ID visible in the links.
func linksToSources(records []linkRecord) ([]domain.PdfSource, string) {
	var sources []domain.PdfSource
	var arxivID string

	for _, rec := range records {
		if m := arxivLinkRegex.FindStringSubmatch(rec.URL); m != nil && arxivID == "" {
			arxivID = m[1]
		}

		kind := rec.LinkType
		if i := strings.LastIndex(kind, "|"); i >= 0 {
			kind = kind[i+1:]
		}
		switch kind {
		case "PUB_PDF":
			sources = append(sources, domain.PdfSource{
				Type: domain.PdfPublisher, URL: rec.URL, Label: "Publisher PDF",
				Priority: domain.PriorityPublisher, RequiresAuth: true,
			})
		case "EPRINT_PDF":
			sources = append(sources, domain.PdfSource{
				Type: domain.PdfArxiv, URL: rec.URL, Label: "arXiv",
				Priority: domain.PriorityArxiv,
			})
		case "ADS_PDF", "ADS_SCAN":
			sources = append(sources, domain.PdfSource{
				Type: domain.PdfADS, URL: rec.URL, Label: "ADS scan",
				Priority: domain.PriorityADS,
			})
		case "AUTHOR_PDF":
			sources = append(sources, domain.PdfSource{
				Type: domain.PdfAuthor, URL: rec.URL, Label: "Author PDF",
				Priority: domain.PriorityAuthor,
			})
		}
	}
	return sources, arxivID
}

// GetBibtex exports one record.
func (c *Client) GetBibtex(ctx context.Context, bibcode string) (string, error) {
	blob, err := c.export(ctx, []string{bibcode})
	if err != nil {
		return "", err
	}
	if blob == "" {
		return "", domain.NewNotFoundError("bibtex", bibcode)
	}
	return blob, nil
}

// GetBibtexBatch exports several records keyed by citation key.
func (c *Client) GetBibtexBatch(ctx context.Context, bibcodes []string) (map[string]string, error) {
	blob, err := c.export(ctx, bibcodes)
	if err != nil {
		return nil, err
	}
	return plugins.SplitBibtex(blob), nil
}

func (c *Client) export(ctx context.Context, bibcodes []string) (string, error) {
	headers, err := c.authHeaders()
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.PostJSON(ctx, "/export/bibtex", exportRequest{Bibcode: bibcodes}, headers)
	if err != nil {
		return "", fmt.Errorf("ads export: %w", err)
	}
	var body exportResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return "", err
	}
	return strings.TrimSpace(body.Export), nil
}

func docsToPapers(docs []doc) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(docs))
	for _, d := range docs {
		if p := docToPaper(d); p != nil {
			papers = append(papers, p)
		}
	}
	return papers
}

// docToPaper converts a Solr document. Documents without a bibcode are skipped.
func docToPaper(d doc) *domain.Paper {
	if d.Bibcode == "" {
		return nil
	}

	p := &domain.Paper{
		Authors:       d.Author,
		Journal:       d.Pub,
		Volume:        d.Volume,
		Abstract:      d.Abstract,
		Keywords:      d.Keyword,
		CitationCount: d.CitationCount,
		Source:        ID,
		SourceID:      d.Bibcode,
		URL:           fmt.Sprintf(abstractURL, d.Bibcode),
		Identifiers:   domain.Identifiers{Bibcode: d.Bibcode},
	}
	if len(d.Title) > 0 {
		p.Title = d.Title[0]
	}
	if len(d.Page) > 0 {
		p.Pages = d.Page[0]
	}
	if y, err := strconv.Atoi(d.Year); err == nil {
		p.Year = y
	}
	if len(d.DOI) > 0 {
		p.Identifiers.DOI = d.DOI[0]
	}
	p.Identifiers.ArxivID = arxivFromIdentifiers(d.Identifier)

	p.Normalize()
	return p
}

// arxivFromIdentifiers finds the arXiv ID among a record's alternate
// identifiers, which mix bibcodes, DOIs and "arXiv:" prefixed IDs.
func arxivFromIdentifiers(ids []string) string {
	for _, raw := range ids {
		if typ, id := identifier.Detect(raw); typ == identifier.TypeArxiv {
			return id
		}
	}
	return ""
}
