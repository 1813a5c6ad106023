package pdf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paperhub/internal/domain"
)

func TestResolveLandingPage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "citation meta tag",
			html: `<html><head><meta name="citation_pdf_url" content="https://pub.example/article.pdf"></head></html>`,
			want: "https://pub.example/article.pdf",
		},
		{
			name: "relative alternate link",
			html: `<html><head><link rel="alternate" type="application/pdf" href="/content/1.pdf"></head></html>`,
			want: "https://journal.example/content/1.pdf",
		},
		{
			name: "anchor fallback",
			html: `<html><body><a href="full.pdf">Full text</a></body></html>`,
			want: "https://journal.example/abs/full.pdf",
		},
		{
			name: "meta wins over anchor",
			html: `<html><head><meta name="citation_pdf_url" content="https://a.example/x.pdf"></head><body><a href="y.pdf">y</a></body></html>`,
			want: "https://a.example/x.pdf",
		},
		{
			name: "no link",
			html: `<html><body><p>Subscribe to read</p></body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLandingPage([]byte(tt.html), "https://journal.example/abs/123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestFetcher() *Fetcher {
	return NewFetcher(newTestDownloader(Config{}), zerolog.Nop(), nil)
}

func TestFetcher_FetchBest(t *testing.T) {
	ctx := context.Background()

	t.Run("priority order wins", func(t *testing.T) {
		var hits []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.URL.Path)
			w.Header().Set("Content-Type", "application/pdf")
			writeContent(w, samplePDFContent)
		}))
		defer server.Close()

		res, err := newTestFetcher().FetchBest(ctx, []domain.PdfSource{
			{Type: domain.PdfArxiv, URL: server.URL + "/arxiv", Priority: domain.PriorityArxiv},
			{Type: domain.PdfPublisher, URL: server.URL + "/publisher", Priority: domain.PriorityPublisher},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PdfPublisher, res.Source.Type)
		assert.Equal(t, []string{"/publisher"}, hits)
		assert.Len(t, res.Attempts, 1)
	})

	t.Run("falls through failures", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/publisher":
				w.WriteHeader(http.StatusForbidden)
			case "/ads":
				w.Header().Set("Content-Type", "application/json")
				writeContent(w, []byte(`{}`))
			default:
				w.Header().Set("Content-Type", "application/pdf")
				writeContent(w, samplePDFContent)
			}
		}))
		defer server.Close()

		res, err := newTestFetcher().FetchBest(ctx, []domain.PdfSource{
			{Type: domain.PdfPublisher, URL: server.URL + "/publisher", Priority: domain.PriorityPublisher},
			{Type: domain.PdfADS, URL: server.URL + "/ads", Priority: domain.PriorityADS},
			{Type: domain.PdfAuthor, URL: server.URL + "/author", Priority: domain.PriorityAuthor},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PdfAuthor, res.Source.Type)
		require.Len(t, res.Attempts, 3)
		assert.ErrorIs(t, res.Attempts[0].Err, ErrDownloadFailed)
		assert.ErrorIs(t, res.Attempts[1].Err, ErrNotPDF)
		assert.NoError(t, res.Attempts[2].Err)
	})

	t.Run("follows landing page once", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/abs/1":
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				writeContent(w, []byte(`<meta name="citation_pdf_url" content="/files/1.pdf">`))
			case "/files/1.pdf":
				w.Header().Set("Content-Type", "application/pdf")
				writeContent(w, samplePDFContent)
			}
		}))
		defer server.Close()

		res, err := newTestFetcher().FetchBest(ctx, []domain.PdfSource{
			{Type: domain.PdfPublisher, URL: server.URL + "/abs/1", Priority: domain.PriorityPublisher},
		})
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/files/1.pdf", res.Document.URL)
		assert.Equal(t, server.URL+"/files/1.pdf", res.Attempts[0].LandingPage)
	})

	t.Run("landing page pointing at html is not followed again", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			writeContent(w, []byte(`<meta name="citation_pdf_url" content="/loop.pdf">`))
		}))
		defer server.Close()

		res, err := newTestFetcher().FetchBest(ctx, []domain.PdfSource{
			{Type: domain.PdfPublisher, URL: server.URL + "/abs", Priority: domain.PriorityPublisher},
		})
		assert.ErrorIs(t, err, ErrNoPDF)
		require.Len(t, res.Attempts, 1)
		assert.ErrorIs(t, res.Attempts[0].Err, ErrNotPDF)
		assert.Nil(t, res.Document)
	})

	t.Run("no sources", func(t *testing.T) {
		res, err := newTestFetcher().FetchBest(ctx, nil)
		assert.ErrorIs(t, err, ErrNoPDF)
		assert.Empty(t, res.Attempts)
	})

	t.Run("canceled context stops", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newTestFetcher().FetchBest(canceled, []domain.PdfSource{
			{Type: domain.PdfArxiv, URL: "https://arxiv.org/pdf/1602.03837", Priority: domain.PriorityArxiv},
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
