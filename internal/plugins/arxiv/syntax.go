package arxiv

import (
	"fmt"
	"strings"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/query"
)

// Syntax is the arXiv API search_query dialect. arXiv needs explicit AND
// between clauses and has no keyword, DOI or bibcode fields; keywords are
// matched against all fields instead.
var Syntax = query.Syntax{
	Join: " AND ",
	Fields: map[query.Field]string{
		query.FieldTitle:    "ti",
		query.FieldAuthor:   "au",
		query.FieldAbstract: "abs",
		query.FieldFullText: "all",
	},
	Year: func(r domain.YearRange) string {
		return fmt.Sprintf("submittedDate:[%04d01010000 TO %04d12312359]", r.From, r.To)
	},
	Keywords: func(keywords []string) string {
		clauses := make([]string, len(keywords))
		for i, kw := range keywords {
			clauses[i] = "all:" + query.Quote(kw)
		}
		return "(" + strings.Join(clauses, " OR ") + ")"
	},
	Exact: map[query.Exact]func(string) string{
		query.ExactArxiv: func(v string) string { return v },
	},
	Sort: query.TableSort(map[domain.SortField]string{
		domain.SortDate:      "submittedDate",
		domain.SortCitations: "submittedDate",
		domain.SortRelevance: "relevance",
	}, "ascending", "descending"),
}

// Translate renders q in the arXiv dialect. When the result is an exact
// arXiv match, Query holds the ID for the id_list parameter.
func Translate(q domain.UnifiedQuery) query.Native {
	return query.Translate(q, Syntax)
}
