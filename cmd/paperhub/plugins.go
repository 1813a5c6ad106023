package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/paperhub/internal/app"
	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/plugins"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List plugins and manage their credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer closeApp()

		infos := a.Manager.Info()
		return render(cmd.OutOrStdout(), globalFlags.format, infos, func(tw io.Writer) {
			pluginsTable(tw, infos)
		})
	},
}

var validateAuthCmd = &cobra.Command{
	Use:   "validate [plugin]...",
	Short: "Check plugin credentials against their sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer closeApp()

		ids := args
		if len(ids) == 0 {
			for _, reg := range a.Manager.List(plugins.ListFilter{EnabledOnly: true}) {
				ids = append(ids, reg.ID)
			}
		}

		type authView struct {
			Plugin string `json:"plugin" yaml:"plugin"`
			Valid  bool   `json:"valid" yaml:"valid"`
			Error  string `json:"error,omitempty" yaml:"error,omitempty"`
		}
		views := make([]authView, 0, len(ids))
		for _, id := range ids {
			ok, err := a.Manager.ValidateAuth(cmd.Context(), id)
			v := authView{Plugin: id, Valid: ok}
			if err != nil {
				v.Error = err.Error()
			}
			views = append(views, v)
		}
		return render(cmd.OutOrStdout(), globalFlags.format, views, func(tw io.Writer) {
			fmt.Fprintln(tw, "PLUGIN\tVALID\tERROR")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Plugin, mark(v.Valid), v.Error)
			}
		})
	},
}

var setTokenCmd = &cobra.Command{
	Use:   "set-token <plugin> [token]",
	Short: "Store a plugin API token in the credential store",
	Long: `Set-token stores the token under the plugin's credential key. Without a
token argument it is read from the first line of standard input, which keeps
it out of shell history.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer closeApp()

		key, err := credentialKey(a.Manager, args[0])
		if err != nil {
			return err
		}

		var token string
		if len(args) == 2 {
			token = args[1]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("read token: %w", err)
			}
			token = line
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return domain.NewValidationError("token", "is required")
		}

		if err := a.Credentials.SetToken(cmd.Context(), key, token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored token for %s\n", args[0])
		return nil
	},
}

var deleteTokenCmd = &cobra.Command{
	Use:   "delete-token <plugin>",
	Short: "Remove a plugin API token from the credential store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer closeApp()

		key, err := credentialKey(a.Manager, args[0])
		if err != nil {
			return err
		}
		if err := a.Credentials.DeleteToken(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted token for %s\n", args[0])
		return nil
	},
}

// credentialKey returns the store key a registered plugin reads its token from.
func credentialKey(mgr *plugins.Manager, pluginID string) (string, error) {
	reg, ok := mgr.Get(pluginID)
	if !ok {
		return "", domain.NewNotFoundError("plugin", pluginID)
	}
	key := reg.Descriptor().Auth.CredentialKey
	if key == "" {
		return "", domain.NewValidationError("plugin", fmt.Sprintf("%s does not use a token", pluginID))
	}
	return key, nil
}

func init() {
	pluginsCmd.AddCommand(validateAuthCmd, setTokenCmd, deleteTokenCmd)
	rootCmd.AddCommand(pluginsCmd)
}
