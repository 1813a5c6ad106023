// Package query translates a domain.UnifiedQuery into a source's native query
// language. The composition policy is shared by every source: raw passthrough,
// then an exact-identifier short-circuit, then field clauses, year, keywords,
// and finally sort. Each source contributes only its lexical rules via Syntax.
package query

import (
	"strings"

	"github.com/helixir/paperhub/internal/domain"
)

// Field is a structured search field of a UnifiedQuery.
type Field string

// Searchable fields in clause order.
const (
	FieldTitle    Field = "title"
	FieldAuthor   Field = "author"
	FieldAbstract Field = "abstract"
	FieldFullText Field = "fullText"
)

// Exact names an exact-match identifier field.
type Exact string

// Exact-match fields.
const (
	ExactNone    Exact = ""
	ExactBibcode Exact = "bibcode"
	ExactDOI     Exact = "doi"
	ExactArxiv   Exact = "arxiv"
)

// ExactPriority is the order in which exact-match fields are honoured when
// more than one is set on a query.
var ExactPriority = []Exact{ExactBibcode, ExactDOI, ExactArxiv}

// Syntax holds a source's lexical rules. Nil funcs mean the source cannot
// express that construct and it is omitted.
type Syntax struct {
	// Join combines clauses. Sources with implicit AND use a single space.
	Join string

	// Fields maps a structured field to its native field name.
	Fields map[Field]string

	// Phrase renders a field filter for a quoted phrase. The default is
	// `name:"value"`.
	Phrase func(name, value string) string

	// Year renders a single year or an inclusive range.
	Year func(r domain.YearRange) string

	// Keywords renders an OR-combined keyword group.
	Keywords func(keywords []string) string

	// Exact renders an exact-match expression for an identifier field.
	Exact map[Exact]func(value string) string

	// Sort maps an abstract sort key and direction to native values.
	Sort func(field domain.SortField, dir domain.SortDirection) (sort, order string)
}

// Native is a translated query ready to be sent to a source.
type Native struct {
	// Query is the native query expression.
	Query string
	// Exact is set when Query is an exact-match expression.
	Exact Exact
	// ExactValue is the identifier used for Exact.
	ExactValue string
	// Sort and Order are the native sort field and direction.
	Sort  string
	Order string
	// Rows and Start carry the page size and offset.
	Rows  int
	Start int
}

// SortString joins Sort and Order with a space, the form most sources accept.
func (n Native) SortString() string {
	if n.Order == "" {
		return n.Sort
	}
	return n.Sort + " " + n.Order
}

// Translate converts q into a native query using the given syntax.
// Defaults (limit, direction, sort) are applied first.
func Translate(q domain.UnifiedQuery, s Syntax) Native {
	q = q.WithDefaults()

	n := Native{Rows: q.Limit, Start: q.Offset}
	if s.Sort != nil {
		n.Sort, n.Order = s.Sort(q.Sort, q.Dir)
	}

	if raw := strings.TrimSpace(q.Raw); raw != "" {
		n.Query = q.Raw
		return n
	}

	if exact, value := pickExact(q, s); exact != ExactNone {
		n.Query = s.Exact[exact](value)
		n.Exact = exact
		n.ExactValue = value
		return n
	}

	n.Query = strings.Join(Clauses(q, s), s.join())
	return n
}

// pickExact returns the highest-priority exact field that is set on q and
// expressible in s.
func pickExact(q domain.UnifiedQuery, s Syntax) (Exact, string) {
	values := map[Exact]string{
		ExactBibcode: strings.TrimSpace(q.Bibcode),
		ExactDOI:     strings.TrimSpace(q.DOI),
		ExactArxiv:   strings.TrimSpace(q.ArxivID),
	}
	for _, e := range ExactPriority {
		if values[e] == "" || s.Exact[e] == nil {
			continue
		}
		return e, values[e]
	}
	return ExactNone, ""
}

// Clauses renders the structured part of q in policy order: title, author,
// abstract, full text, year, keywords. Empty fields produce no clause.
func Clauses(q domain.UnifiedQuery, s Syntax) []string {
	var clauses []string

	fields := []struct {
		field Field
		value string
	}{
		{FieldTitle, q.Title},
		{FieldAuthor, q.Author},
		{FieldAbstract, q.Abstract},
		{FieldFullText, q.FullText},
	}
	for _, f := range fields {
		value := strings.TrimSpace(f.value)
		name, ok := s.Fields[f.field]
		if value == "" || !ok {
			continue
		}
		clauses = append(clauses, s.phrase(name, value))
	}

	if q.Year != nil && s.Year != nil {
		clauses = append(clauses, s.Year(*q.Year))
	}

	if kws := domain.DedupStrings(q.Keywords); len(kws) > 0 && s.Keywords != nil {
		clauses = append(clauses, s.Keywords(kws))
	}

	return clauses
}

func (s Syntax) join() string {
	if s.Join == "" {
		return " "
	}
	return s.Join
}

func (s Syntax) phrase(name, value string) string {
	if s.Phrase != nil {
		return s.Phrase(name, value)
	}
	return name + ":" + Quote(value)
}

// Quote wraps v in double quotes, escaping embedded quotes.
func Quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// QuotedOr renders `("a" OR "b")` joined by op.
func QuotedOr(values []string, op string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return "(" + strings.Join(quoted, " "+op+" ") + ")"
}

// TableSort builds a Sort func from a name table and direction names.
// Keys missing from names fall back to the domain.SortDate entry.
func TableSort(names map[domain.SortField]string, asc, desc string) func(domain.SortField, domain.SortDirection) (string, string) {
	return func(f domain.SortField, d domain.SortDirection) (string, string) {
		name, ok := names[f]
		if !ok {
			name = names[domain.SortDate]
		}
		if d == domain.SortAsc {
			return name, asc
		}
		return name, desc
	}
}
