package ads

import (
	"fmt"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/query"
)

// Syntax is the ADS Solr query dialect. Clauses are space-joined, which ADS
// treats as an implicit AND.
var Syntax = query.Syntax{
	Join: " ",
	Fields: map[query.Field]string{
		query.FieldTitle:    "title",
		query.FieldAuthor:   "author",
		query.FieldAbstract: "abs",
		query.FieldFullText: "full",
	},
	Year: func(r domain.YearRange) string {
		if r.Single() {
			return fmt.Sprintf("year:%d", r.From)
		}
		return fmt.Sprintf("year:[%d TO %d]", r.From, r.To)
	},
	Keywords: func(keywords []string) string {
		return "keyword:" + query.QuotedOr(keywords, "OR")
	},
	Exact: map[query.Exact]func(string) string{
		query.ExactBibcode: func(v string) string { return "bibcode:" + query.Quote(v) },
		query.ExactDOI:     func(v string) string { return "doi:" + query.Quote(v) },
		query.ExactArxiv:   func(v string) string { return "arXiv:" + v },
	},
	Sort: query.TableSort(map[domain.SortField]string{
		domain.SortDate:      "date",
		domain.SortCitations: "citation_count",
		domain.SortRelevance: "score",
	}, "asc", "desc"),
}

// Translate renders q in the ADS dialect.
func Translate(q domain.UnifiedQuery) query.Native {
	return query.Translate(q, Syntax)
}

func bibcodeQuery(bibcode string) string {
	return Syntax.Exact[query.ExactBibcode](bibcode)
}

func bibcodesQuery(bibcodes []string) string {
	return "bibcode:" + query.QuotedOr(bibcodes, "OR")
}
