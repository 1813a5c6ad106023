package ads

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/query"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name      string
		query     domain.UnifiedQuery
		wantQuery string
		wantSort  string
	}{
		{
			name:      "raw wins over everything",
			query:     domain.UnifiedQuery{Raw: `author:"^Einstein" year:1905`, Title: "ignored", Bibcode: "2024ApJ...123..456A"},
			wantQuery: `author:"^Einstein" year:1905`,
			wantSort:  "date desc",
		},
		{
			name:      "bibcode exact match",
			query:     domain.UnifiedQuery{Bibcode: "2024ApJ...123..456A"},
			wantQuery: `bibcode:"2024ApJ...123..456A"`,
			wantSort:  "date desc",
		},
		{
			name:      "bibcode beats doi and arxiv",
			query:     domain.UnifiedQuery{Bibcode: "2024ApJ...123..456A", DOI: "10.1/x", ArxivID: "2401.12345", Title: "t"},
			wantQuery: `bibcode:"2024ApJ...123..456A"`,
			wantSort:  "date desc",
		},
		{
			name:      "arxiv exact match",
			query:     domain.UnifiedQuery{ArxivID: "2401.12345"},
			wantQuery: `arXiv:2401.12345`,
			wantSort:  "date desc",
		},
		{
			name: "fields year and keywords",
			query: domain.UnifiedQuery{
				Title: "dark energy", Author: "Riess, A", Abstract: "supernovae", FullText: "Hubble",
				Year: &domain.YearRange{From: 1998, To: 2000}, Keywords: []string{"cosmology", "supernovae"},
				Sort: domain.SortCitations, Dir: domain.SortAsc,
			},
			wantQuery: `title:"dark energy" author:"Riess, A" abs:"supernovae" full:"Hubble" year:[1998 TO 2000] keyword:("cosmology" OR "supernovae")`,
			wantSort:  "citation_count asc",
		},
		{
			name:      "single year and relevance",
			query:     domain.UnifiedQuery{Title: "x", Year: domain.Year(2020), Sort: domain.SortRelevance},
			wantQuery: `title:"x" year:2020`,
			wantSort:  "score desc",
		},
		{
			name:      "unknown sort falls back to date",
			query:     domain.UnifiedQuery{Title: "x", Sort: "popularity"},
			wantQuery: `title:"x"`,
			wantSort:  "date desc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.query)
			assert.Equal(t, tt.wantQuery, got.Query)
			assert.Equal(t, tt.wantSort, got.SortString())
		})
	}
}

func TestTranslate_ExactFlag(t *testing.T) {
	got := Translate(domain.UnifiedQuery{DOI: "10.1086/305772"})
	assert.Equal(t, query.ExactDOI, got.Exact)
	assert.Equal(t, "10.1086/305772", got.ExactValue)
	assert.Equal(t, `doi:"10.1086/305772"`, got.Query)
	assert.Equal(t, domain.DefaultLimit, got.Rows)
}
