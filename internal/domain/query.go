package domain

import "strings"

// SortField is a source-independent sort key.
type SortField string

// Supported sort keys. Unknown keys are translated as SortDate.
const (
	SortDate      SortField = "date"
	SortCitations SortField = "citations"
	SortRelevance SortField = "relevance"
)

// SortDirection orders results.
type SortDirection string

// Supported directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Query defaults.
const (
	DefaultLimit = 25
	MaxLimit     = 2000
)

// YearRange is an inclusive publication-year range. A single year has From == To.
type YearRange struct {
	From int `json:"from" yaml:"from" validate:"gte=0"`
	To   int `json:"to" yaml:"to" validate:"gtefield=From"`
}

// Single reports whether the range covers exactly one year.
func (r YearRange) Single() bool {
	return r.From == r.To
}

// Year returns a range covering a single year.
func Year(y int) *YearRange {
	return &YearRange{From: y, To: y}
}

// UnifiedQuery is the source-independent search description.
// Raw, when set, is passed to the source verbatim and every other field
// except sort and pagination is ignored.
type UnifiedQuery struct {
	Raw      string        `json:"raw,omitempty" yaml:"raw,omitempty"`
	Title    string        `json:"title,omitempty" yaml:"title,omitempty"`
	Author   string        `json:"author,omitempty" yaml:"author,omitempty"`
	Abstract string        `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	FullText string        `json:"fullText,omitempty" yaml:"fullText,omitempty"`
	Year     *YearRange    `json:"year,omitempty" yaml:"year,omitempty"`
	DOI      string        `json:"doi,omitempty" yaml:"doi,omitempty" validate:"omitempty,doi"`
	ArxivID  string        `json:"arxivId,omitempty" yaml:"arxivId,omitempty" validate:"omitempty,arxiv"`
	Bibcode  string        `json:"bibcode,omitempty" yaml:"bibcode,omitempty" validate:"omitempty,bibcode"`
	Keywords []string      `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Sort     SortField     `json:"sort,omitempty" yaml:"sort,omitempty"`
	Dir      SortDirection `json:"direction,omitempty" yaml:"direction,omitempty" validate:"omitempty,oneof=asc desc"`
	Limit    int           `json:"limit,omitempty" yaml:"limit,omitempty" validate:"gte=0,lte=2000"`
	Offset   int           `json:"offset,omitempty" yaml:"offset,omitempty" validate:"gte=0"`
}

// WithDefaults returns a copy of q with direction, limit and sort defaulted.
func (q UnifiedQuery) WithDefaults() UnifiedQuery {
	if q.Dir == "" {
		q.Dir = SortDesc
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	switch q.Sort {
	case SortDate, SortCitations, SortRelevance:
	default:
		q.Sort = SortDate
	}
	return q
}

// IsEmpty reports whether the query carries no search criteria at all.
// A whitespace-only Raw counts as no criteria.
func (q UnifiedQuery) IsEmpty() bool {
	return strings.TrimSpace(q.Raw) == "" && q.Title == "" && q.Author == "" && q.Abstract == "" &&
		q.FullText == "" && q.Year == nil && q.DOI == "" && q.ArxivID == "" &&
		q.Bibcode == "" && len(q.Keywords) == 0
}
