package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/paperhub/internal/app"
)

var pdfOpts struct {
	list   bool
	output string
}

var pdfCmd = &cobra.Command{
	Use:   "pdf <identifier>",
	Short: "List PDF sources for a paper or download the best one",
	Long: `PDF resolves the identifier, collects PDF locations from every enabled
plugin that offers them, and downloads the first one that serves a PDF,
following publisher landing pages once. With --list it only prints the
sources in priority order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer closeApp()

		ctx := cmd.Context()
		res, err := resolve(ctx, a.Manager, args[0])
		if err != nil {
			return err
		}

		sources := a.Manager.GetPdfSources(ctx, res.Paper)
		for _, f := range sources.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", f.PluginID, f.Err)
		}
		if pdfOpts.list {
			return render(cmd.OutOrStdout(), globalFlags.format, sources.Sources, func(tw io.Writer) {
				pdfSourcesTable(tw, sources.Sources)
			})
		}

		fetched, err := a.Fetcher.FetchBest(ctx, sources.Sources)
		if err != nil {
			for _, at := range fetched.Attempts {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s: %s\n", at.Source.Type, at.Source.URL, at.Error)
			}
			return err
		}

		path := pdfOpts.output
		if path == "" {
			path = filepath.Join(a.Config.PDF.OutputDir, pdfFileName(res.Paper.Identifiers.CanonicalID(), res.Paper.SourceID))
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
		if err := os.WriteFile(path, fetched.Document.Content, 0o644); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}

		view := struct {
			Path   string `json:"path" yaml:"path"`
			Source string `json:"source" yaml:"source"`
			URL    string `json:"url" yaml:"url"`
			Size   int64  `json:"size" yaml:"size"`
			SHA256 string `json:"sha256" yaml:"sha256"`
		}{path, string(fetched.Source.Type), fetched.Document.URL, fetched.Document.SizeBytes, fetched.Document.ContentHash}
		return render(cmd.OutOrStdout(), globalFlags.format, view, func(tw io.Writer) {
			fmt.Fprintf(tw, "Saved %s (%d bytes) from %s\n", view.Path, view.Size, view.Source)
		})
	},
}

func init() {
	pdfCmd.Flags().BoolVar(&pdfOpts.list, "list", false, "only list PDF sources")
	pdfCmd.Flags().StringVar(&pdfOpts.output, "output", "", "file to write (default: <pdf.output_dir>/<identifier>.pdf)")
	rootCmd.AddCommand(pdfCmd)
}

// pdfFileName derives a file name from a canonical identifier such as
// "doi:10.1103/PhysRevLett.116.061102".
func pdfFileName(canonicalID, fallback string) string {
	name := canonicalID
	if name == "" {
		name = fallback
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "paper"
	}
	return name + ".pdf"
}
