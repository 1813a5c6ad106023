package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/helixir/paperhub/internal/app"
	"github.com/helixir/paperhub/internal/domain"
)

var bibtexPlugin string

var bibtexCmd = &cobra.Command{
	Use:   "bibtex <id>...",
	Short: "Export BibTeX entries from a plugin",
	Long: `BibTeX asks one plugin (the active one unless --plugin is given) for
entries by the plugin's own record IDs, e.g. ADS bibcodes. Several IDs are
fetched in one batch request.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer closeApp()

		pluginID := bibtexPlugin
		if pluginID == "" {
			pluginID = a.Manager.ActiveID()
		}
		if pluginID == "" {
			return domain.ErrNoActivePlugin
		}

		entries := make(map[string]string, len(args))
		if len(args) == 1 {
			entry, err := a.Manager.GetBibtex(cmd.Context(), pluginID, args[0])
			if err != nil {
				return err
			}
			entries[args[0]] = entry
		} else {
			entries, err = a.Manager.GetBibtexBatch(cmd.Context(), pluginID, args)
			if err != nil {
				return err
			}
		}

		return render(cmd.OutOrStdout(), globalFlags.format, entries, func(tw io.Writer) {
			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintln(tw, entries[k])
			}
		})
	},
}

func init() {
	bibtexCmd.Flags().StringVarP(&bibtexPlugin, "plugin", "p", "", "plugin to export from (default: active plugin)")
	rootCmd.AddCommand(bibtexCmd)
}
