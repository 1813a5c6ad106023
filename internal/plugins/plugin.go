// Package plugins defines the source plugin contract and the Manager that
// coordinates registered plugins.
//
// A plugin integrates one external bibliographic database. Every plugin
// implements the base Plugin interface; each capability it declares in its
// Descriptor requires a matching capability interface, which the Manager
// checks once at registration time:
//
//	Search      -> Searcher
//	Lookup      -> RecordGetter (optionally DOIResolver, ArxivResolver)
//	References  -> ReferenceLister
//	Citations   -> CitationLister
//	PDFDownload -> PDFSourceFinder
//	Bibtex      -> BibtexExporter
//	Metadata    -> BatchGetter
//
// Example usage:
//
//	mgr := plugins.NewManager(plugins.ManagerConfig{Logger: logger})
//	if err := mgr.Register(ads.New(ads.Config{}, httpClient)); err != nil {
//		return err
//	}
//	mgr.Initialize(ctx)
//	result, err := mgr.Search(ctx, domain.UnifiedQuery{Title: "dark energy"})
package plugins

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
)

// Capability names one optional plugin operation group.
type Capability string

// Known capabilities.
const (
	CapSearch      Capability = "search"
	CapLookup      Capability = "lookup"
	CapReferences  Capability = "references"
	CapCitations   Capability = "citations"
	CapPDFDownload Capability = "pdfDownload"
	CapBibtex      Capability = "bibtex"
	CapMetadata    Capability = "metadata"
)

// AllCapabilities lists every capability in display order.
var AllCapabilities = []Capability{
	CapSearch, CapLookup, CapReferences, CapCitations, CapPDFDownload, CapBibtex, CapMetadata,
}

// Capabilities are the feature flags a plugin declares.
type Capabilities struct {
	Search      bool `json:"search" yaml:"search"`
	Lookup      bool `json:"lookup" yaml:"lookup"`
	References  bool `json:"references" yaml:"references"`
	Citations   bool `json:"citations" yaml:"citations"`
	PDFDownload bool `json:"pdfDownload" yaml:"pdfDownload"`
	Bibtex      bool `json:"bibtex" yaml:"bibtex"`
	Metadata    bool `json:"metadata" yaml:"metadata"`
}

// Has reports whether the capability flag c is set.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapSearch:
		return c.Search
	case CapLookup:
		return c.Lookup
	case CapReferences:
		return c.References
	case CapCitations:
		return c.Citations
	case CapPDFDownload:
		return c.PDFDownload
	case CapBibtex:
		return c.Bibtex
	case CapMetadata:
		return c.Metadata
	default:
		return false
	}
}

// List returns the declared capabilities in display order.
func (c Capabilities) List() []Capability {
	var out []Capability
	for _, capability := range AllCapabilities {
		if c.Has(capability) {
			out = append(out, capability)
		}
	}
	return out
}

// SearchCapabilities describes which UnifiedQuery features a source honours.
type SearchCapabilities struct {
	Fields     []string           `json:"fields" yaml:"fields"`
	Exact      []string           `json:"exact" yaml:"exact"`
	YearRange  bool               `json:"yearRange" yaml:"yearRange"`
	Keywords   bool               `json:"keywords" yaml:"keywords"`
	Raw        bool               `json:"raw" yaml:"raw"`
	Sorts      []domain.SortField `json:"sorts" yaml:"sorts"`
	MaxResults int                `json:"maxResults" yaml:"maxResults"`
}

// AuthDescriptor describes a plugin's credential requirements.
type AuthDescriptor struct {
	Required bool `json:"required" yaml:"required"`
	// CredentialKey is the key the token is stored under in the credential store.
	CredentialKey string `json:"credentialKey,omitempty" yaml:"credentialKey,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	// SignupURL tells users where to obtain a token.
	SignupURL string `json:"signupUrl,omitempty" yaml:"signupUrl,omitempty"`
}

// Descriptor is a plugin's static identity.
type Descriptor struct {
	ID                 string             `json:"id" yaml:"id" validate:"required,pluginid"`
	Name               string             `json:"name" yaml:"name" validate:"required"`
	Icon               string             `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description        string             `json:"description,omitempty" yaml:"description,omitempty"`
	Capabilities       Capabilities       `json:"capabilities" yaml:"capabilities"`
	SearchCapabilities SearchCapabilities `json:"searchCapabilities" yaml:"searchCapabilities"`
	Auth               AuthDescriptor     `json:"auth" yaml:"auth"`
	// NativeIdentifier is the identifier type the source keys its records by.
	// It selects the ID passed to record-level operations for papers produced
	// by other sources.
	NativeIdentifier identifier.Type `json:"nativeIdentifier" yaml:"nativeIdentifier"`
}

// CredentialSource supplies tokens by key.
type CredentialSource interface {
	// Token returns the stored token, or "" with a nil error when none is set.
	Token(ctx context.Context, key string) (string, error)
}

// Options are passed to Plugin.Initialize.
type Options struct {
	Credentials CredentialSource
	Logger      zerolog.Logger
}

// Plugin is the base contract every source plugin implements.
type Plugin interface {
	// Descriptor returns the plugin's static identity and capability flags.
	Descriptor() Descriptor

	// Initialize loads credentials and prepares the plugin. It is idempotent.
	Initialize(ctx context.Context, opts Options) error

	// Shutdown releases resources and clears any credential so that
	// authenticated operations fail until the next Initialize. It is idempotent.
	Shutdown(ctx context.Context) error

	// ValidateAuth checks the configured credential against the source.
	// It never returns an error: any failure yields false.
	ValidateAuth(ctx context.Context) bool

	// RateLimitStatus returns the last-known remote quota. It does no I/O.
	RateLimitStatus() domain.RateLimitStatus
}

// Searcher is required by CapSearch.
type Searcher interface {
	// Search translates q into the source's query language and returns one
	// page of papers with Source and SourceID populated.
	Search(ctx context.Context, q domain.UnifiedQuery) (*domain.SearchResult, error)
}

// RecordGetter is required by CapLookup.
type RecordGetter interface {
	// GetRecord returns (nil, nil) when the record does not exist.
	GetRecord(ctx context.Context, id string) (*domain.Paper, error)
}

// DOIResolver is implemented by plugins that resolve DOIs directly.
type DOIResolver interface {
	// GetByDOI returns (nil, nil) when no record carries the DOI.
	GetByDOI(ctx context.Context, doi string) (*domain.Paper, error)
}

// ArxivResolver is implemented by plugins that resolve arXiv IDs directly.
type ArxivResolver interface {
	// GetByArxiv returns (nil, nil) when no record carries the arXiv ID.
	GetByArxiv(ctx context.Context, arxivID string) (*domain.Paper, error)
}

// DefaultListLimit caps reference and citation lists when no limit is given.
const DefaultListLimit = 200

// ListOptions bounds reference and citation listings.
type ListOptions struct {
	Limit int
}

// EffectiveLimit returns Limit or DefaultListLimit.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// ReferenceLister is required by CapReferences.
type ReferenceLister interface {
	GetReferences(ctx context.Context, id string, opts ListOptions) ([]*domain.Paper, error)
}

// CitationLister is required by CapCitations.
type CitationLister interface {
	GetCitations(ctx context.Context, id string, opts ListOptions) ([]*domain.Paper, error)
}

// PDFSourceFinder is required by CapPDFDownload.
type PDFSourceFinder interface {
	// GetPdfSources returns candidate PDF locations ordered by ascending
	// priority with at most one entry per source type.
	GetPdfSources(ctx context.Context, id string) ([]domain.PdfSource, error)
}

// BibtexExporter is required by CapBibtex.
type BibtexExporter interface {
	GetBibtex(ctx context.Context, id string) (string, error)
	// GetBibtexBatch returns entries keyed by citation key.
	GetBibtexBatch(ctx context.Context, ids []string) (map[string]string, error)
}

// BatchItem is the outcome for one ID of a batch request. Paper is nil when
// the ID did not resolve; Err is set when resolution failed rather than missed.
type BatchItem struct {
	ID    string        `json:"id"`
	Paper *domain.Paper `json:"paper,omitempty"`
	Err   error         `json:"-"`
}

// Resolved returns the papers of items that resolved, in order.
func Resolved(items []BatchItem) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(items))
	for _, it := range items {
		if it.Paper != nil {
			papers = append(papers, it.Paper)
		}
	}
	return papers
}

// BatchGetter is required by CapMetadata.
type BatchGetter interface {
	// GetBatch resolves ids best-effort and reports one item per input ID.
	GetBatch(ctx context.Context, ids []string) ([]BatchItem, error)
}
