package pdf

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/observability"
)

// ErrNoPDF is returned by FetchBest when no source served a PDF.
var ErrNoPDF = errors.New("pdf: no source served a PDF")

// Download outcomes, also used as metric labels.
const (
	outcomeSuccess = "success"
	outcomeNotPDF  = "not_pdf"
	outcomeFailed  = "failed"
)

// Attempt records one source tried by FetchBest.
type Attempt struct {
	Source domain.PdfSource `json:"source"`
	// LandingPage is the PDF link found on an HTML page, if one was followed.
	LandingPage string `json:"landingPage,omitempty"`
	Err         error  `json:"-"`
	Error       string `json:"error,omitempty"`
}

// FetchResult is the outcome of FetchBest.
type FetchResult struct {
	Document *Document        `json:"-"`
	Source   domain.PdfSource `json:"source"`
	Attempts []Attempt        `json:"attempts"`
}

// Fetcher downloads the best available PDF from a list of sources.
type Fetcher struct {
	downloader *Downloader
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewFetcher creates a Fetcher. metrics may be nil.
func NewFetcher(downloader *Downloader, logger zerolog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		downloader: downloader,
		logger:     logger.With().Str("component", "pdf").Logger(),
		metrics:    metrics,
	}
}

// FetchBest tries sources in ascending Priority and returns the first PDF.
// An HTML response is searched for a PDF link, which is followed once.
// When every source fails the result lists each attempt and the error wraps
// ErrNoPDF.
func (f *Fetcher) FetchBest(ctx context.Context, sources []domain.PdfSource) (*FetchResult, error) {
	ordered := make([]domain.PdfSource, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	result := &FetchResult{}
	for _, src := range ordered {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, attempt := f.try(ctx, src)
		result.Attempts = append(result.Attempts, attempt)
		if doc != nil {
			f.metrics.RecordPdfDownload(string(src.Type), outcomeSuccess)
			f.logger.Info().
				Str("source_type", string(src.Type)).
				Str("url", doc.URL).
				Int64("size_bytes", doc.SizeBytes).
				Msg("pdf downloaded")
			result.Document = doc
			result.Source = src
			return result, nil
		}

		outcome := outcomeFailed
		if errors.Is(attempt.Err, ErrNotPDF) {
			outcome = outcomeNotPDF
		}
		f.metrics.RecordPdfDownload(string(src.Type), outcome)
		f.logger.Warn().
			Err(attempt.Err).
			Str("source_type", string(src.Type)).
			Str("url", src.URL).
			Msg("pdf source failed")
	}

	return result, fmt.Errorf("%w: tried %d sources", ErrNoPDF, len(ordered))
}

func (f *Fetcher) try(ctx context.Context, src domain.PdfSource) (*Document, Attempt) {
	attempt := Attempt{Source: src}
	fail := func(err error) (*Document, Attempt) {
		attempt.Err = err
		attempt.Error = err.Error()
		return nil, attempt
	}

	resp, err := f.downloader.get(ctx, src.URL)
	if err != nil {
		return fail(err)
	}
	if resp.isPDF() {
		return newDocument(resp), attempt
	}
	if !resp.isHTML() {
		return fail(fmt.Errorf("%w: Content-Type is %q", ErrNotPDF, resp.contentType))
	}

	link, err := ResolveLandingPage(resp.body, resp.finalURL)
	if err != nil {
		return fail(err)
	}
	if link == "" {
		return fail(fmt.Errorf("%w: landing page has no PDF link", ErrNotPDF))
	}
	attempt.LandingPage = link

	doc, err := f.downloader.Download(ctx, link)
	if err != nil {
		return fail(err)
	}
	return doc, attempt
}
