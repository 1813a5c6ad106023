package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
	"github.com/helixir/paperhub/internal/library"
	"github.com/helixir/paperhub/internal/plugins"
)

func samplePaper() *domain.Paper {
	return &domain.Paper{
		Title:         "Observation of Gravitational Waves from a Binary Black Hole Merger",
		Authors:       []string{"Abbott, B. P.", "Abbott, R."},
		Year:          2016,
		CitationCount: domain.IntPtr(12000),
		Identifiers: domain.Identifiers{
			DOI:     "10.1103/PhysRevLett.116.061102",
			ArxivID: "1602.03837",
			Bibcode: "2016PhRvL.116f1102A",
		},
		Source:   "ads",
		SourceID: "2016PhRvL.116f1102A",
	}
}

func TestRender(t *testing.T) {
	papers := []*domain.Paper{samplePaper()}
	table := func(tw io.Writer) { papersTable(tw, papers) }

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, formatJSON, papers, table))

		var got []domain.Paper
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "1602.03837", got[0].Identifiers.ArxivID)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, formatYAML, papers, table))
		assert.Contains(t, buf.String(), "1602.03837")

		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "ads", got[0]["source"])
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, formatTable, papers, table))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "SOURCE"))
		assert.Contains(t, lines[1], "2016PhRvL.116f1102A")
		assert.Contains(t, lines[1], "Abbott, B. P.")
	})
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{formatTable, formatJSON, formatYAML} {
		assert.NoError(t, validateFormat(f))
	}
	assert.Error(t, validateFormat("xml"))
}

func TestPaperDetails(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTable, nil, func(tw io.Writer) { paperDetails(tw, samplePaper()) }))

	out := buf.String()
	assert.Contains(t, out, "Abbott, B. P.; Abbott, R.")
	assert.Contains(t, out, "12000")
	assert.NotContains(t, out, "Journal:")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "Schrödi...", truncate("Schrödinger equation", 10))
}

func TestParseYearRange(t *testing.T) {
	tests := []struct {
		in       string
		from, to int
		wantErr  bool
	}{
		{in: "2016", from: 2016, to: 2016},
		{in: " 2010-2020 ", from: 2010, to: 2020},
		{in: "2010-", from: 2010, to: 9999},
		{in: "-2020", from: 0, to: 2020},
		{in: "-", wantErr: true},
		{in: "2020-2010", wantErr: true},
		{in: "twenty", wantErr: true},
		{in: "0", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			yr, err := parseYearRange(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.from, yr.From)
			assert.Equal(t, tc.to, yr.To)
		})
	}
}

func TestSearchFlags_Query(t *testing.T) {
	t.Run("fields", func(t *testing.T) {
		f := searchFlags{author: "Abbott", year: "2016", keywords: []string{"ligo", "gw"}, sort: "citations", limit: 10}
		q, err := f.query(nil)
		require.NoError(t, err)
		assert.Equal(t, "Abbott", q.Author)
		assert.Equal(t, domain.Year(2016), q.Year)
		assert.Equal(t, domain.SortCitations, q.Sort)
		assert.Equal(t, []string{"ligo", "gw"}, q.Keywords)
		assert.Empty(t, q.Raw)
	})

	t.Run("raw from args", func(t *testing.T) {
		q, err := searchFlags{}.query([]string{`author:"Abbott"`, "year:2016"})
		require.NoError(t, err)
		assert.Equal(t, `author:"Abbott" year:2016`, q.Raw)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := searchFlags{}.query(nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("invalid doi", func(t *testing.T) {
		_, err := searchFlags{doi: "not-a-doi"}.query(nil)
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "doi", ve.Field)
	})

	t.Run("invalid direction", func(t *testing.T) {
		_, err := searchFlags{title: "x", direction: "sideways"}.query(nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestNewLookupView(t *testing.T) {
	res := &plugins.LookupResult{
		Paper:      samplePaper(),
		PluginID:   "arxiv",
		Type:       identifier.TypeArxiv,
		Identifier: "1602.03837",
		Attempts: []plugins.Attempt{
			{PluginID: "ads", Method: plugins.MethodGetByArxiv, Err: domain.ErrUnauthenticated},
			{PluginID: "arxiv", Method: plugins.MethodGetByArxiv, Found: true},
		},
	}

	v := newLookupView(res)
	assert.Equal(t, "arxiv", v.Type)
	require.Len(t, v.Attempts, 2)
	assert.Equal(t, "unauthenticated", v.Attempts[0].Error)
	assert.True(t, v.Attempts[1].Found)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatYAML, v, nil))
	assert.Contains(t, buf.String(), "error: unauthenticated")
}

func TestNewImportView(t *testing.T) {
	created := newImportView("1602.03837", &library.ImportResult{
		Outcome: library.OutcomeCreated,
		Entry:   &library.Entry{ID: 3, Paper: samplePaper()},
		Lookup:  &plugins.LookupResult{PluginID: "arxiv"},
	}, nil)
	assert.Equal(t, library.OutcomeCreated, created.Outcome)
	assert.Equal(t, int64(3), created.EntryID)
	assert.Equal(t, "arxiv", created.Plugin)

	failed := newImportView("hello", nil, domain.NewValidationError("identifier", "unrecognized"))
	assert.Equal(t, library.OutcomeError, failed.Outcome)
	assert.NotEmpty(t, failed.Error)
}

func TestPdfFileName(t *testing.T) {
	assert.Equal(t, "doi_10.1103_PhysRevLett.116.061102.pdf", pdfFileName("doi:10.1103/PhysRevLett.116.061102", "x"))
	assert.Equal(t, "2016PhRvL.116f1102A.pdf", pdfFileName("", "2016PhRvL.116f1102A"))
	assert.Equal(t, "paper.pdf", pdfFileName("", ""))
}

func TestRootCommand(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{"version"})
		require.NoError(t, rootCmd.Execute())
		assert.Equal(t, "paperhub dev\n", out.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		rootCmd.SetOut(io.Discard)
		rootCmd.SetErr(io.Discard)
		rootCmd.SetArgs([]string{"version", "--format", "xml"})
		err := rootCmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown output format")
		globalFlags.format = formatTable
	})

	t.Run("search without criteria", func(t *testing.T) {
		rootCmd.SetOut(io.Discard)
		rootCmd.SetErr(io.Discard)
		rootCmd.SetArgs([]string{"search"})
		err := rootCmd.Execute()
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
