package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"go.yaml.in/yaml/v3"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/plugins"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// maxTitleWidth truncates titles in table output.
const maxTitleWidth = 72

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// render writes v as JSON or YAML, or calls table with a tab-aligned writer.
func render(w io.Writer, format string, v any, table func(tw io.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func papersTable(tw io.Writer, papers []*domain.Paper) {
	fmt.Fprintln(tw, "SOURCE\tID\tYEAR\tFIRST AUTHOR\tTITLE")
	for _, p := range papers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Source, p.SourceID, yearString(p.Year), p.FirstAuthor(), truncate(p.Title, maxTitleWidth))
	}
}

func paperDetails(tw io.Writer, p *domain.Paper) {
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", k, v)
		}
	}
	row("Title", p.Title)
	row("Authors", strings.Join(p.Authors, "; "))
	row("Year", yearString(p.Year))
	row("Journal", p.Journal)
	row("Volume", p.Volume)
	row("Pages", p.Pages)
	row("DOI", p.Identifiers.DOI)
	row("arXiv", p.Identifiers.ArxivID)
	row("Bibcode", p.Identifiers.Bibcode)
	row("INSPIRE", p.Identifiers.InspireID)
	if p.CitationCount != nil {
		row("Citations", strconv.Itoa(*p.CitationCount))
	}
	row("Keywords", strings.Join(p.Keywords, ", "))
	row("Source", p.Source+" "+p.SourceID)
	row("URL", p.URL)
}

func pluginsTable(tw io.Writer, infos []plugins.PluginInfo) {
	fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tENABLED\tAUTH\tCAPABILITIES")
	for _, info := range infos {
		caps := make([]string, 0, len(info.Capabilities))
		for _, c := range info.Capabilities {
			caps = append(caps, string(c))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", info.ID, info.Name, mark(info.Active), mark(info.Enabled), mark(info.AuthRequired), strings.Join(caps, ","))
	}
}

func pdfSourcesTable(tw io.Writer, sources []domain.PdfSource) {
	fmt.Fprintln(tw, "PRIORITY\tTYPE\tAUTH\tURL")
	for _, s := range sources {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Priority, s.Type, mark(s.RequiresAuth), s.URL)
	}
}

func yearString(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
