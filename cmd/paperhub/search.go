package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/paperhub/internal/app"
	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/validation"
)

// searchFlags mirrors the fields of domain.UnifiedQuery.
type searchFlags struct {
	plugin    string
	federated bool
	title     string
	author    string
	abstract  string
	fullText  string
	year      string
	doi       string
	arxivID   string
	bibcode   string
	keywords  []string
	sort      string
	direction string
	limit     int
	offset    int
}

var searchOpts searchFlags

var searchCmd = &cobra.Command{
	Use:   "search [raw query]",
	Short: "Search the active plugin, a named plugin, or all of them",
	Long: `Search builds a source-independent query from flags and sends it to the
active plugin. Positional arguments form a raw query passed to the source
verbatim, in which case the field flags are ignored.

  paperhub search --author "Abbott" --year 2016 --sort citations
  paperhub search --plugin inspire 't "dark matter" and date > 2020'
  paperhub search --federated --title "gravitational waves"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := searchOpts.query(args)
		if err != nil {
			return err
		}

		a, closeApp, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer closeApp()

		out := cmd.OutOrStdout()
		if searchOpts.federated {
			res := a.Manager.FederatedSearch(cmd.Context(), q)
			errs := make(map[string]string, len(res.Errors))
			for id, err := range res.Errors {
				errs[id] = err.Error()
			}
			view := struct {
				Results map[string]*domain.SearchResult `json:"results" yaml:"results"`
				Errors  map[string]string               `json:"errors,omitempty" yaml:"errors,omitempty"`
			}{res.Results, errs}
			return render(out, globalFlags.format, view, func(tw io.Writer) {
				federatedTable(tw, res.Results, errs)
			})
		}

		var result *domain.SearchResult
		if searchOpts.plugin != "" {
			result, err = a.Manager.SearchPlugin(cmd.Context(), searchOpts.plugin, q)
		} else {
			result, err = a.Manager.Search(cmd.Context(), q)
		}
		if err != nil {
			return err
		}
		return render(out, globalFlags.format, result, func(tw io.Writer) {
			papersTable(tw, result.Papers)
			fmt.Fprintf(tw, "\n%d of %d results from %s\n", len(result.Papers), result.TotalResults, result.Metadata[domain.MetaSource])
		})
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringVarP(&searchOpts.plugin, "plugin", "p", "", "search this plugin instead of the active one")
	f.BoolVar(&searchOpts.federated, "federated", false, "search every enabled plugin concurrently")
	f.StringVar(&searchOpts.title, "title", "", "title phrase")
	f.StringVar(&searchOpts.author, "author", "", "author name")
	f.StringVar(&searchOpts.abstract, "abstract", "", "abstract phrase")
	f.StringVar(&searchOpts.fullText, "fulltext", "", "full-text phrase")
	f.StringVar(&searchOpts.year, "year", "", "publication year or inclusive range, e.g. 2016 or 2010-2020")
	f.StringVar(&searchOpts.doi, "doi", "", "exact DOI")
	f.StringVar(&searchOpts.arxivID, "arxiv", "", "exact arXiv ID")
	f.StringVar(&searchOpts.bibcode, "bibcode", "", "exact ADS bibcode")
	f.StringSliceVar(&searchOpts.keywords, "keyword", nil, "keyword, repeatable; keywords are OR-combined")
	f.StringVar(&searchOpts.sort, "sort", "", "sort by date, citations or relevance")
	f.StringVar(&searchOpts.direction, "direction", "", "sort direction: asc or desc")
	f.IntVarP(&searchOpts.limit, "limit", "n", 0, "maximum results")
	f.IntVar(&searchOpts.offset, "offset", 0, "results to skip")
	searchCmd.MarkFlagsMutuallyExclusive("plugin", "federated")

	rootCmd.AddCommand(searchCmd)
}

// query builds and validates the UnifiedQuery described by the flags.
func (f searchFlags) query(args []string) (domain.UnifiedQuery, error) {
	q := domain.UnifiedQuery{
		Raw:      strings.TrimSpace(strings.Join(args, " ")),
		Title:    f.title,
		Author:   f.author,
		Abstract: f.abstract,
		FullText: f.fullText,
		DOI:      f.doi,
		ArxivID:  f.arxivID,
		Bibcode:  f.bibcode,
		Keywords: f.keywords,
		Sort:     domain.SortField(f.sort),
		Dir:      domain.SortDirection(f.direction),
		Limit:    f.limit,
		Offset:   f.offset,
	}
	if f.year != "" {
		yr, err := parseYearRange(f.year)
		if err != nil {
			return q, err
		}
		q.Year = yr
	}
	if q.IsEmpty() {
		return q, domain.NewValidationError("query", "give a raw query or at least one field flag")
	}
	if err := validation.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// parseYearRange accepts "2016", "2010-2020", "2010-" and "-2020".
func parseYearRange(s string) (*domain.YearRange, error) {
	bad := domain.NewValidationError("year", fmt.Sprintf("%q is not a year or year range", s))

	from, to, isRange := strings.Cut(strings.TrimSpace(s), "-")
	if !isRange {
		y, err := strconv.Atoi(from)
		if err != nil || y <= 0 {
			return nil, bad
		}
		return domain.Year(y), nil
	}

	var yr domain.YearRange
	var err error
	if from != "" {
		if yr.From, err = strconv.Atoi(from); err != nil {
			return nil, bad
		}
	}
	if to != "" {
		if yr.To, err = strconv.Atoi(to); err != nil {
			return nil, bad
		}
	} else {
		yr.To = 9999
	}
	if from == "" && to == "" {
		return nil, bad
	}
	if yr.To < yr.From {
		return nil, domain.NewValidationError("year", "range end precedes its start")
	}
	return &yr, nil
}

func federatedTable(tw io.Writer, results map[string]*domain.SearchResult, errs map[string]string) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		res := results[id]
		fmt.Fprintf(tw, "== %s (%d of %d)\n", id, len(res.Papers), res.TotalResults)
		papersTable(tw, res.Papers)
		fmt.Fprintln(tw)
	}

	failed := make([]string, 0, len(errs))
	for id := range errs {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		fmt.Fprintf(tw, "!! %s: %s\n", id, errs[id])
	}
}
