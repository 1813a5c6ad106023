package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/helixir/paperhub/internal/app"
	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
	"github.com/helixir/paperhub/internal/plugins"
)

type attemptView struct {
	Plugin string `json:"plugin" yaml:"plugin"`
	Method string `json:"method" yaml:"method"`
	Found  bool   `json:"found" yaml:"found"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

type lookupView struct {
	Identifier string        `json:"identifier" yaml:"identifier"`
	Type       string        `json:"type" yaml:"type"`
	Plugin     string        `json:"plugin,omitempty" yaml:"plugin,omitempty"`
	Paper      *domain.Paper `json:"paper" yaml:"paper"`
	Attempts   []attemptView `json:"attempts" yaml:"attempts"`
}

func newLookupView(res *plugins.LookupResult) lookupView {
	v := lookupView{
		Identifier: res.Identifier,
		Type:       res.Type.String(),
		Plugin:     res.PluginID,
		Paper:      res.Paper,
		Attempts:   make([]attemptView, 0, len(res.Attempts)),
	}
	for _, a := range res.Attempts {
		av := attemptView{Plugin: a.PluginID, Method: a.Method, Found: a.Found}
		if a.Err != nil {
			av.Error = a.Err.Error()
		}
		v.Attempts = append(v.Attempts, av)
	}
	return v
}

func attemptsTable(tw io.Writer, attempts []attemptView) {
	fmt.Fprintln(tw, "PLUGIN\tMETHOD\tFOUND\tERROR")
	for _, a := range attempts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Plugin, a.Method, mark(a.Found), a.Error)
	}
}

// resolve looks raw up and fails with the attempt log when no plugin has it.
func resolve(ctx context.Context, mgr *plugins.Manager, raw string) (*plugins.LookupResult, error) {
	res := mgr.Lookup(ctx, raw)
	if res.Type == identifier.TypeUnknown {
		return res, domain.NewValidationError("identifier", fmt.Sprintf("%q is not a DOI, arXiv ID, bibcode or INSPIRE record ID", raw))
	}
	if res.Paper == nil {
		return res, domain.NewNotFoundError("paper", res.Identifier)
	}
	return res, nil
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <identifier>",
	Short: "Resolve a DOI, arXiv ID, bibcode or INSPIRE record ID",
	Long: `Lookup classifies the identifier and asks the active plugin for it, then
every other enabled plugin in registration order until one has the paper.
Prefixed forms such as doi:10.1103/... and arXiv:1602.03837 are accepted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer closeApp()

		res, err := resolve(cmd.Context(), a.Manager, args[0])
		view := newLookupView(res)
		if err != nil {
			if res.Type != identifier.TypeUnknown {
				_ = render(cmd.ErrOrStderr(), formatTable, view, func(tw io.Writer) { attemptsTable(tw, view.Attempts) })
			}
			return err
		}

		return render(cmd.OutOrStdout(), globalFlags.format, view, func(tw io.Writer) {
			paperDetails(tw, res.Paper)
			fmt.Fprintf(tw, "Resolved by:\t%s (%s)\n", res.PluginID, res.Type)
		})
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
