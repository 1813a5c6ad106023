package query

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/paperhub/internal/domain"
)

// testSyntax resembles a Solr-style source with implicit AND.
func testSyntax() Syntax {
	return Syntax{
		Fields: map[Field]string{
			FieldTitle:    "title",
			FieldAuthor:   "author",
			FieldAbstract: "abs",
			FieldFullText: "full",
		},
		Year: func(r domain.YearRange) string {
			if r.Single() {
				return fmt.Sprintf("year:%d", r.From)
			}
			return fmt.Sprintf("year:[%d TO %d]", r.From, r.To)
		},
		Keywords: func(kws []string) string {
			return "keyword:" + QuotedOr(kws, "OR")
		},
		Exact: map[Exact]func(string) string{
			ExactBibcode: func(v string) string { return "bibcode:" + Quote(v) },
			ExactDOI:     func(v string) string { return "doi:" + Quote(v) },
			ExactArxiv:   func(v string) string { return "arXiv:" + v },
		},
		Sort: TableSort(map[domain.SortField]string{
			domain.SortDate:      "date",
			domain.SortCitations: "citation_count",
			domain.SortRelevance: "score",
		}, "asc", "desc"),
	}
}

func TestTranslate_RawWins(t *testing.T) {
	q := domain.UnifiedQuery{
		Raw:     "abs:\"black hole\" property:refereed",
		Title:   "ignored",
		Bibcode: "2024ApJ...123..456A",
		Year:    domain.Year(2020),
	}

	n := Translate(q, testSyntax())

	assert.Equal(t, q.Raw, n.Query)
	assert.Equal(t, ExactNone, n.Exact)
}

func TestTranslate_ExactShortCircuit(t *testing.T) {
	t.Run("bibcode only", func(t *testing.T) {
		n := Translate(domain.UnifiedQuery{Bibcode: "2024ApJ...123..456A"}, testSyntax())
		assert.Equal(t, `bibcode:"2024ApJ...123..456A"`, n.Query)
		assert.Equal(t, ExactBibcode, n.Exact)
		assert.Equal(t, "2024ApJ...123..456A", n.ExactValue)
	})

	t.Run("bibcode beats doi and arxiv", func(t *testing.T) {
		n := Translate(domain.UnifiedQuery{
			ArxivID: "2401.12345",
			DOI:     "10.1086/305772",
			Bibcode: "2024ApJ...123..456A",
			Title:   "ignored",
		}, testSyntax())
		assert.Equal(t, ExactBibcode, n.Exact)
	})

	t.Run("doi beats arxiv", func(t *testing.T) {
		n := Translate(domain.UnifiedQuery{ArxivID: "2401.12345", DOI: "10.1086/305772"}, testSyntax())
		assert.Equal(t, `doi:"10.1086/305772"`, n.Query)
	})

	t.Run("inexpressible field falls through to next", func(t *testing.T) {
		s := testSyntax()
		delete(s.Exact, ExactBibcode)
		n := Translate(domain.UnifiedQuery{Bibcode: "2024ApJ...123..456A", ArxivID: "2401.12345"}, s)
		assert.Equal(t, "arXiv:2401.12345", n.Query)
		assert.Equal(t, ExactArxiv, n.Exact)
	})
}

func TestTranslate_Clauses(t *testing.T) {
	tests := []struct {
		name     string
		query    domain.UnifiedQuery
		expected string
	}{
		{
			name:     "title and author",
			query:    domain.UnifiedQuery{Title: "dark matter", Author: "Rubin, V"},
			expected: `title:"dark matter" author:"Rubin, V"`,
		},
		{
			name:     "all fields in policy order",
			query:    domain.UnifiedQuery{FullText: "halo", Abstract: "rotation", Author: "Rubin", Title: "galaxies"},
			expected: `title:"galaxies" author:"Rubin" abs:"rotation" full:"halo"`,
		},
		{
			name:     "single year",
			query:    domain.UnifiedQuery{Title: "x", Year: domain.Year(2020)},
			expected: `title:"x" year:2020`,
		},
		{
			name:     "year range",
			query:    domain.UnifiedQuery{Year: &domain.YearRange{From: 2019, To: 2021}},
			expected: `year:[2019 TO 2021]`,
		},
		{
			name:     "keywords deduplicated and OR-combined",
			query:    domain.UnifiedQuery{Keywords: []string{"cosmology", "lensing", "cosmology"}},
			expected: `keyword:("cosmology" OR "lensing")`,
		},
		{
			name:     "embedded quotes escaped",
			query:    domain.UnifiedQuery{Title: `the "dark" side`},
			expected: `title:"the \"dark\" side"`,
		},
		{
			name:     "empty query",
			query:    domain.UnifiedQuery{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Translate(tt.query, testSyntax()).Query)
		})
	}
}

func TestTranslate_CustomJoin(t *testing.T) {
	s := testSyntax()
	s.Join = " AND "
	n := Translate(domain.UnifiedQuery{Title: "a", Author: "b"}, s)
	assert.Equal(t, `title:"a" AND author:"b"`, n.Query)
}

func TestTranslate_SortAndPaging(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		n := Translate(domain.UnifiedQuery{Title: "x"}, testSyntax())
		assert.Equal(t, "date desc", n.SortString())
		assert.Equal(t, domain.DefaultLimit, n.Rows)
		assert.Equal(t, 0, n.Start)
	})

	t.Run("unknown sort falls back to date", func(t *testing.T) {
		n := Translate(domain.UnifiedQuery{Title: "x", Sort: "popularity", Dir: domain.SortAsc}, testSyntax())
		assert.Equal(t, "date asc", n.SortString())
	})

	t.Run("citations", func(t *testing.T) {
		n := Translate(domain.UnifiedQuery{Title: "x", Sort: domain.SortCitations, Limit: 10, Offset: 20}, testSyntax())
		assert.Equal(t, "citation_count desc", n.SortString())
		assert.Equal(t, 10, n.Rows)
		assert.Equal(t, 20, n.Start)
	})

	t.Run("sort applies to raw queries", func(t *testing.T) {
		n := Translate(domain.UnifiedQuery{Raw: "x", Sort: domain.SortRelevance}, testSyntax())
		assert.Equal(t, "score desc", n.SortString())
	})
}
