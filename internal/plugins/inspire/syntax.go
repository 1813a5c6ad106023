package inspire

import (
	"fmt"
	"strings"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/query"
)

// Syntax is the INSPIRE search dialect. Short SPIRES-style keywords take a
// space before the value; dotted Elasticsearch paths take a colon.
var Syntax = query.Syntax{
	Join: " and ",
	Fields: map[query.Field]string{
		query.FieldTitle:    "t",
		query.FieldAuthor:   "a",
		query.FieldAbstract: "abstracts.value",
		query.FieldFullText: "fulltext",
	},
	Phrase: func(name, value string) string {
		if strings.Contains(name, ".") {
			return name + ":" + query.Quote(value)
		}
		return name + " " + query.Quote(value)
	},
	Year: func(r domain.YearRange) string {
		if r.Single() {
			return fmt.Sprintf("date %d", r.From)
		}
		return fmt.Sprintf("date %d->%d", r.From, r.To)
	},
	Keywords: func(keywords []string) string {
		clauses := make([]string, len(keywords))
		for i, kw := range keywords {
			clauses[i] = "k " + query.Quote(kw)
		}
		return "(" + strings.Join(clauses, " or ") + ")"
	},
	Exact: map[query.Exact]func(string) string{
		query.ExactDOI:   func(v string) string { return "doi " + v },
		query.ExactArxiv: func(v string) string { return "arxiv " + v },
	},
	Sort: sortName,
}

// sortName maps sort keys to INSPIRE's named orders. Citation and relevance
// orders have no ascending variant.
func sortName(f domain.SortField, d domain.SortDirection) (string, string) {
	switch f {
	case domain.SortCitations:
		return "mostcited", ""
	case domain.SortRelevance:
		return "bestmatch", ""
	default:
		if d == domain.SortAsc {
			return "leastrecent", ""
		}
		return "mostrecent", ""
	}
}

// Translate renders q in the INSPIRE dialect.
func Translate(q domain.UnifiedQuery) query.Native {
	return query.Translate(q, Syntax)
}

func recidQuery(ids []string) string {
	clauses := make([]string, len(ids))
	for i, id := range ids {
		clauses[i] = "recid:" + id
	}
	return strings.Join(clauses, " or ")
}
