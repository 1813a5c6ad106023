package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/helixir/paperhub/internal/app"
	"github.com/helixir/paperhub/internal/library"
)

type importView struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Outcome    string `json:"outcome" yaml:"outcome"`
	EntryID    int64  `json:"entryId,omitempty" yaml:"entryId,omitempty"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Plugin     string `json:"plugin,omitempty" yaml:"plugin,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newImportView(raw string, res *library.ImportResult, err error) importView {
	v := importView{Identifier: raw, Outcome: library.OutcomeError}
	if res != nil {
		v.Outcome = res.Outcome
		if res.Entry != nil {
			v.EntryID = res.Entry.ID
			v.Title = res.Entry.Paper.Title
		}
		if res.Lookup != nil {
			v.Plugin = res.Lookup.PluginID
		}
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

var importCmd = &cobra.Command{
	Use:   "import <identifier>...",
	Short: "Add papers to the local library",
	Long: `Import resolves each identifier and stores the paper in the local SQLite
library. Papers already present under any of their DOI, arXiv ID, bibcode
or INSPIRE ID are reported as duplicates without contacting a plugin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd, app.Options{Library: true})
		if err != nil {
			return err
		}
		defer closeApp()

		views := make([]importView, 0, len(args))
		var errs []error
		for _, raw := range args {
			res, err := a.Library.ImportIdentifier(cmd.Context(), raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", raw, err))
			}
			views = append(views, newImportView(raw, res, err))
		}

		if err := render(cmd.OutOrStdout(), globalFlags.format, views, func(tw io.Writer) {
			fmt.Fprintln(tw, "IDENTIFIER\tOUTCOME\tENTRY\tTITLE")
			for _, v := range views {
				detail := truncate(v.Title, maxTitleWidth)
				if v.Error != "" {
					detail = v.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", v.Identifier, v.Outcome, v.EntryID, detail)
			}
		}); err != nil {
			return err
		}
		return errors.Join(errs...)
	},
}

var libraryOpts library.ListOptions

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "List papers in the local library, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd, app.Options{Library: true})
		if err != nil {
			return err
		}
		defer closeApp()

		entries, total, err := a.Library.List(cmd.Context(), libraryOpts)
		if err != nil {
			return err
		}
		view := struct {
			Entries []*library.Entry `json:"entries" yaml:"entries"`
			Total   int              `json:"total" yaml:"total"`
		}{entries, total}
		return render(cmd.OutOrStdout(), globalFlags.format, view, func(tw io.Writer) {
			fmt.Fprintln(tw, "ENTRY\tADDED\tYEAR\tFIRST AUTHOR\tTITLE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.AddedAt.Format("2006-01-02"), yearString(e.Paper.Year), e.Paper.FirstAuthor(), truncate(e.Paper.Title, maxTitleWidth))
			}
			fmt.Fprintf(tw, "\n%d of %d papers\n", len(entries), total)
		})
	},
}

func init() {
	libraryCmd.Flags().IntVarP(&libraryOpts.Limit, "limit", "n", 50, "maximum entries")
	libraryCmd.Flags().IntVar(&libraryOpts.Offset, "offset", 0, "entries to skip")

	rootCmd.AddCommand(importCmd, libraryCmd)
}
