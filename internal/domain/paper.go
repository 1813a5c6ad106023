// Package domain provides the data model shared by every paper source plugin:
// papers, unified queries, search results, PDF sources and rate-limit status.
package domain

import (
	"strings"
)

// UntitledPaper is the title given to records whose source omits one.
const UntitledPaper = "Untitled"

// Identifiers holds the external identifiers a paper may carry.
// Empty strings mean the identifier is unknown.
type Identifiers struct {
	DOI       string `json:"doi,omitempty" yaml:"doi,omitempty" validate:"omitempty,doi"`
	ArxivID   string `json:"arxivId,omitempty" yaml:"arxivId,omitempty" validate:"omitempty,arxiv"`
	Bibcode   string `json:"bibcode,omitempty" yaml:"bibcode,omitempty" validate:"omitempty,bibcode"`
	InspireID string `json:"inspireId,omitempty" yaml:"inspireId,omitempty" validate:"omitempty,inspire"`
}

// IsEmpty reports whether no identifier is set.
func (ids Identifiers) IsEmpty() bool {
	return ids.DOI == "" && ids.ArxivID == "" && ids.Bibcode == "" && ids.InspireID == ""
}

// CanonicalID returns a prefixed identifier usable as a deduplication key.
// Priority order: DOI > arXiv > bibcode > INSPIRE.
// Returns empty string if no identifiers are available.
func (ids Identifiers) CanonicalID() string {
	if doi := strings.TrimSpace(ids.DOI); doi != "" {
		// DOIs are case-insensitive
		return "doi:" + strings.ToLower(doi)
	}
	if arxiv := strings.TrimSpace(ids.ArxivID); arxiv != "" {
		return "arxiv:" + arxiv
	}
	if bibcode := strings.TrimSpace(ids.Bibcode); bibcode != "" {
		return "bibcode:" + bibcode
	}
	if recid := strings.TrimSpace(ids.InspireID); recid != "" {
		return "inspire:" + recid
	}
	return ""
}

// Paper is a bibliographic record as returned by a source plugin.
// Papers are built fresh for every response; callers may mutate them freely.
type Paper struct {
	Title         string      `json:"title" yaml:"title" validate:"required"`
	Authors       []string    `json:"authors" yaml:"authors"`
	Year          int         `json:"year,omitempty" yaml:"year,omitempty" validate:"gte=0"`
	Journal       string      `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume        string      `json:"volume,omitempty" yaml:"volume,omitempty"`
	Pages         string      `json:"pages,omitempty" yaml:"pages,omitempty"`
	Abstract      string      `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Keywords      []string    `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	CitationCount *int        `json:"citationCount,omitempty" yaml:"citationCount,omitempty" validate:"omitempty,gte=0"`
	Identifiers   Identifiers `json:"identifiers" yaml:"identifiers"`
	// Source is the ID of the plugin that produced the record.
	Source string `json:"source" yaml:"source" validate:"required"`
	// SourceID is the record's ID in the source's own namespace.
	SourceID string `json:"sourceId" yaml:"sourceId" validate:"required"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
}

// Normalize fills the title fallback and collapses duplicate keywords,
// keeping the order of first appearance.
func (p *Paper) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		p.Title = UntitledPaper
	}
	p.Keywords = DedupStrings(p.Keywords)
	if p.CitationCount != nil && *p.CitationCount < 0 {
		p.CitationCount = nil
	}
}

// FirstAuthor returns the first listed author or an empty string.
func (p *Paper) FirstAuthor() string {
	if len(p.Authors) == 0 {
		return ""
	}
	return p.Authors[0]
}

// DedupStrings returns the trimmed non-empty values of in with duplicates
// removed, preserving first-appearance order.
func DedupStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
