package domain

import "time"

// SearchResult is one page of results from a single source.
type SearchResult struct {
	TotalResults int               `json:"totalResults" yaml:"totalResults"`
	Papers       []*Paper          `json:"papers" yaml:"papers"`
	Cursor       string            `json:"cursor,omitempty" yaml:"cursor,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Metadata keys set by plugins on SearchResult.Metadata.
const (
	MetaQuery  = "query"
	MetaSort   = "sort"
	MetaSource = "source"
)

// PdfSourceType names where a PDF is hosted.
type PdfSourceType string

// Known PDF source types.
const (
	PdfPublisher PdfSourceType = "publisher"
	PdfArxiv     PdfSourceType = "arxiv"
	PdfADS       PdfSourceType = "ads"
	PdfAuthor    PdfSourceType = "author"
	PdfInspire   PdfSourceType = "inspire"
)

// Default priorities per PDF source type. Lower is preferred.
const (
	PriorityPublisher = 1
	PriorityArxiv     = 2
	PriorityADS       = 3
	PriorityAuthor    = 4
	PriorityInspire   = 5
)

// PdfSource is one candidate location of a paper's full text.
type PdfSource struct {
	Type         PdfSourceType `json:"type" yaml:"type"`
	URL          string        `json:"url" yaml:"url"`
	Label        string        `json:"label" yaml:"label"`
	Priority     int           `json:"priority" yaml:"priority"`
	RequiresAuth bool          `json:"requiresAuth" yaml:"requiresAuth"`
}

// ArxivPdfURL returns the canonical arXiv PDF location for an arXiv ID.
func ArxivPdfURL(arxivID string) string {
	return "https://arxiv.org/pdf/" + arxivID
}

// RateLimitStatus is a plugin's most recent view of its remote quota.
type RateLimitStatus struct {
	Remaining int       `json:"remaining" yaml:"remaining"`
	Limit     int       `json:"limit" yaml:"limit"`
	ResetAt   time.Time `json:"resetAt,omitempty" yaml:"resetAt,omitempty"`
	// RetryAfter is set only when Remaining is exhausted.
	RetryAfter time.Duration `json:"retryAfter,omitempty" yaml:"retryAfter,omitempty"`
}

// Exhausted reports whether the caller should back off before dispatching.
func (s RateLimitStatus) Exhausted() bool {
	return s.Remaining <= 0 && s.RetryAfter > 0
}
