package inspire

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/plugins"
)

const recordJSON = `{
  "id": "1757281",
  "metadata": {
    "control_number": 1757281,
    "titles": [{"title": "First M87 Event Horizon Telescope Results. I."}],
    "authors": [{"full_name": "Akiyama, Kazunori"}, {"full_name": "Alberdi, Antxon"}],
    "abstracts": [{"value": "When surrounded by a transparent emission region..."}],
    "dois": [{"value": "10.3847/2041-8213/ab0ec7"}],
    "arxiv_eprints": [{"value": "1906.11238", "categories": ["astro-ph.GA"]}],
    "citation_count": 2500,
    "publication_info": [{"journal_title": "Astrophys.J.Lett.", "journal_volume": "875", "page_start": "L1", "year": 2019}],
    "keywords": [{"value": "black hole"}, {"value": "black hole"}],
    "earliest_date": "2019-04-10"
  }
}`

const searchJSON = `{
  "hits": {
    "total": 42,
    "hits": [` + recordJSON + `, {"metadata": {"titles": [{"title": "no control number"}]}}]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	return newTestClientWithConfig(t, Config{}, handler)
}

func newTestClientWithConfig(t *testing.T, cfg Config, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	httpClient := plugins.NewHTTPClient(plugins.HTTPClientConfig{PluginID: ID, BaseURL: server.URL})
	return NewWithHTTPClient(cfg, httpClient)
}

// numberedHits serves records numbered from 1 in result order, paged by the
// request's size and page parameters.
func numberedHits(t *testing.T, total int, requests *[]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		size, err := strconv.Atoi(r.URL.Query().Get("size"))
		assert.NoError(t, err)
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		assert.NoError(t, err)
		*requests = append(*requests, fmt.Sprintf("page=%d size=%d", page, size))

		var hits []string
		for n := (page-1)*size + 1; n <= page*size && n <= total; n++ {
			hits = append(hits, fmt.Sprintf(`{"metadata": {"control_number": %d, "titles": [{"title": "paper %d"}]}}`, n, n))
		}
		fmt.Fprintf(w, `{"hits": {"total": %d, "hits": [%s]}}`, total, strings.Join(hits, ","))
	}
}

func inspireIDs(papers []*domain.Paper) []string {
	ids := make([]string, 0, len(papers))
	for _, p := range papers {
		ids = append(ids, p.Identifiers.InspireID)
	}
	return ids
}

func rangeIDs(from, to int) []string {
	var ids []string
	for n := from; n <= to; n++ {
		ids = append(ids, strconv.Itoa(n))
	}
	return ids
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name      string
		query     domain.UnifiedQuery
		wantQuery string
		wantSort  string
	}{
		{
			name:      "fields",
			query:     domain.UnifiedQuery{Title: "event horizon", Author: "Akiyama", Abstract: "black hole"},
			wantQuery: `t "event horizon" and a "Akiyama" and abstracts.value:"black hole"`,
			wantSort:  "mostrecent",
		},
		{
			name:      "year range keywords and fulltext",
			query:     domain.UnifiedQuery{FullText: "shadow", Year: &domain.YearRange{From: 2017, To: 2019}, Keywords: []string{"VLBI", "M87"}, Sort: domain.SortDate, Dir: domain.SortAsc},
			wantQuery: `fulltext "shadow" and date 2017->2019 and (k "VLBI" or k "M87")`,
			wantSort:  "leastrecent",
		},
		{
			name:      "single year most cited",
			query:     domain.UnifiedQuery{Title: "x", Year: domain.Year(2019), Sort: domain.SortCitations},
			wantQuery: `t "x" and date 2019`,
			wantSort:  "mostcited",
		},
		{
			name:      "bibcode unsupported so doi is used",
			query:     domain.UnifiedQuery{Bibcode: "2019ApJ...875L...1E", DOI: "10.3847/2041-8213/ab0ec7", Sort: domain.SortRelevance},
			wantQuery: "doi 10.3847/2041-8213/ab0ec7",
			wantSort:  "bestmatch",
		},
		{
			name:      "arxiv exact",
			query:     domain.UnifiedQuery{ArxivID: "1906.11238"},
			wantQuery: "arxiv 1906.11238",
			wantSort:  "mostrecent",
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

func TestClient_Search(t *testing.T) {
	var q, size, page, sort string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/literature", r.URL.Path)
		q = r.URL.Query().Get("q")
		size = r.URL.Query().Get("size")
		page = r.URL.Query().Get("page")
		sort = r.URL.Query().Get("sort")
		w.Write([]byte(searchJSON))
	})

	res, err := c.Search(context.Background(), domain.UnifiedQuery{Title: "M87", Limit: 10, Offset: 20, Sort: domain.SortCitations})
	require.NoError(t, err)

	assert.Equal(t, `t "M87"`, q)
	assert.Equal(t, "10", size)
	assert.Equal(t, "3", page)
	assert.Equal(t, "mostcited", sort)

	assert.Equal(t, 42, res.TotalResults)
	require.Len(t, res.Papers, 1)

	p := res.Papers[0]
	assert.Equal(t, "First M87 Event Horizon Telescope Results. I.", p.Title)
	assert.Equal(t, []string{"Akiyama, Kazunori", "Alberdi, Antxon"}, p.Authors)
	assert.Equal(t, 2019, p.Year)
	assert.Equal(t, "Astrophys.J.Lett.", p.Journal)
	assert.Equal(t, "875", p.Volume)
	assert.Equal(t, "L1", p.Pages)
	assert.Equal(t, []string{"black hole"}, p.Keywords)
	assert.Equal(t, 2500, *p.CitationCount)
	assert.Equal(t, "10.3847/2041-8213/ab0ec7", p.Identifiers.DOI)
	assert.Equal(t, "1906.11238", p.Identifiers.ArxivID)
	assert.Equal(t, "1757281", p.Identifiers.InspireID)
	assert.Equal(t, ID, p.Source)
	assert.Equal(t, "1757281", p.SourceID)
	assert.Equal(t, "https://inspirehep.net/literature/1757281", p.URL)
}

func TestClient_SearchUnalignedOffset(t *testing.T) {
	t.Run("one covering page", func(t *testing.T) {
		var requests []string
		c := newTestClient(t, numberedHits(t, 100, &requests))

		res, err := c.Search(context.Background(), domain.UnifiedQuery{Title: "x", Limit: 25, Offset: 10})
		require.NoError(t, err)

		assert.Equal(t, []string{"page=1 size=35"}, requests)
		assert.Equal(t, rangeIDs(11, 35), inspireIDs(res.Papers))
	})

	t.Run("two adjacent pages when no single page fits", func(t *testing.T) {
		var requests []string
		c := newTestClientWithConfig(t, Config{MaxResults: 30}, numberedHits(t, 100, &requests))

		res, err := c.Search(context.Background(), domain.UnifiedQuery{Title: "x", Limit: 25, Offset: 10})
		require.NoError(t, err)

		assert.Equal(t, []string{"page=1 size=25", "page=2 size=25"}, requests)
		assert.Equal(t, rangeIDs(11, 35), inspireIDs(res.Papers))
	})

	t.Run("window past the last hit", func(t *testing.T) {
		var requests []string
		c := newTestClient(t, numberedHits(t, 20, &requests))

		res, err := c.Search(context.Background(), domain.UnifiedQuery{Title: "x", Limit: 10, Offset: 15})
		require.NoError(t, err)
		assert.Equal(t, rangeIDs(16, 20), inspireIDs(res.Papers))
		assert.Equal(t, 20, res.TotalResults)
	})
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		offset, rows, max int
		page, size, skip  int
		ok                bool
	}{
		{offset: 0, rows: 25, max: 1000, page: 1, size: 25, skip: 0, ok: true},
		{offset: 20, rows: 10, max: 1000, page: 3, size: 10, skip: 0, ok: true},
		{offset: 10, rows: 25, max: 1000, page: 1, size: 35, skip: 10, ok: true},
		{offset: 5, rows: 10, max: 1000, page: 1, size: 15, skip: 5, ok: true},
		{offset: 10, rows: 25, max: 30, ok: false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("offset %d rows %d", tc.offset, tc.rows), func(t *testing.T) {
			page, size, skip, ok := pageWindow(tc.offset, tc.rows, tc.max)
			require.Equal(t, tc.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.page, page)
			assert.Equal(t, tc.size, size)
			assert.Equal(t, tc.skip, skip)
			// The chosen page holds the whole window.
			assert.LessOrEqual(t, tc.offset+tc.rows, (page-1)*size+size)
			assert.Equal(t, tc.offset, (page-1)*size+skip)
		})
	}
}

func TestClient_SearchLogsNativeQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchJSON))
	})
	var buf bytes.Buffer
	require.NoError(t, c.Initialize(context.Background(), plugins.Options{Logger: zerolog.New(&buf).Level(zerolog.DebugLevel)}))

	_, err := c.Search(context.Background(), domain.UnifiedQuery{Title: "M87"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"query":"t \"M87\""`)
	assert.Contains(t, buf.String(), "inspire search completed")
}

func TestClient_RecordEndpoints(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/literature/999" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(recordJSON))
	})
	ctx := context.Background()

	p, err := c.GetRecord(ctx, "1757281")
	require.NoError(t, err)
	require.NotNil(t, p)

	p, err = c.GetRecord(ctx, "999")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = c.GetByDOI(ctx, "10.3847/2041-8213/ab0ec7")
	require.NoError(t, err)

	_, err = c.GetByArxiv(ctx, "1906.11238")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/literature/1757281",
		"/literature/999",
		"/doi/10.3847/2041-8213/ab0ec7",
		"/arxiv/1906.11238",
	}, paths)
}

func TestClient_GetBatch(t *testing.T) {
	var q string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query().Get("q")
		w.Write([]byte(searchJSON))
	})

	items, err := c.GetBatch(context.Background(), []string{"1757281", "1"})
	require.NoError(t, err)
	assert.Equal(t, "recid:1757281 or recid:1", q)
	require.Len(t, items, 2)
	assert.NotNil(t, items[0].Paper)
	assert.Nil(t, items[1].Paper)
}

func TestClient_GetReferences(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "references", r.URL.Query().Get("fields"))
		w.Write([]byte(`{"metadata": {"references": [
			{"record": {"$ref": "https://inspirehep.net/api/literature/111"},
			 "reference": {"title": {"title": "Ref one"}, "authors": [{"full_name": "Doe, J."}], "arxiv_eprint": "1801.00001", "dois": ["10.1/one"], "publication_info": {"year": 2018}}},
			{"reference": {"title": {"title": "Unmatched"}}},
			{"record": {"$ref": "https://inspirehep.net/api/literature/222"}, "reference": {}},
			{"record": {"$ref": "https://inspirehep.net/api/literature/333"}, "reference": {}}
		]}}`))
	})

	refs, err := c.GetReferences(context.Background(), "1757281", plugins.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "Ref one", refs[0].Title)
	assert.Equal(t, "111", refs[0].SourceID)
	assert.Equal(t, "1801.00001", refs[0].Identifiers.ArxivID)
	assert.Equal(t, "10.1/one", refs[0].Identifiers.DOI)
	assert.Equal(t, 2018, refs[0].Year)
	assert.Equal(t, domain.UntitledPaper, refs[1].Title)
	assert.Equal(t, "222", refs[1].SourceID)
}

func TestClient_GetCitations(t *testing.T) {
	var q, sort string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query().Get("q")
		sort = r.URL.Query().Get("sort")
		w.Write([]byte(searchJSON))
	})

	cites, err := c.GetCitations(context.Background(), "1757281", plugins.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, cites, 1)
	assert.Equal(t, "refersto:recid:1757281", q)
	assert.Equal(t, "mostcited", sort)
}

func TestClient_GetPdfSources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata": {
			"documents": [
				{"url": "https://inspirehep.net/files/abc", "description": "Fulltext", "fulltext": true},
				{"url": "https://inspirehep.net/files/hidden", "hidden": true},
				{"url": "https://inspirehep.net/files/def"}
			],
			"arxiv_eprints": [{"value": "1906.11238"}]
		}}`))
	})

	sources, err := c.GetPdfSources(context.Background(), "1757281")
	require.NoError(t, err)

	require.Len(t, sources, 2)
	assert.Equal(t, domain.PdfArxiv, sources[0].Type)
	assert.Equal(t, "https://arxiv.org/pdf/1906.11238", sources[0].URL)
	assert.Equal(t, domain.PdfInspire, sources[1].Type)
	assert.Equal(t, "https://inspirehep.net/files/abc", sources[1].URL)
	assert.Equal(t, "Fulltext", sources[1].Label)
}

func TestClient_Bibtex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bibtex", r.URL.Query().Get("format"))
		if r.URL.Path == "/literature/1757281" {
			w.Write([]byte("@article{EventHorizonTelescope:2019dse,\n    title = \"{First M87}\"\n}\n"))
			return
		}
		w.Write([]byte("@article{A:2019a,\n}\n@inproceedings{B:2020b,\n}\n"))
	})
	ctx := context.Background()

	bib, err := c.GetBibtex(ctx, "1757281")
	require.NoError(t, err)
	assert.Contains(t, bib, "EventHorizonTelescope:2019dse")

	entries, err := c.GetBibtexBatch(ctx, []string{"1", "2"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, "A:2019a")
	assert.Contains(t, entries, "B:2020b")
}

func TestClient_Descriptor(t *testing.T) {
	c := New(Config{})
	assert.NoError(t, plugins.ValidatePlugin(c))
	assert.True(t, c.ValidateAuth(context.Background()))
	assert.Equal(t, "inspire", string(c.Descriptor().NativeIdentifier))
}
