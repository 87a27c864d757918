package cmd

import (
	"strings"

	"appkeeper/internal/manifest"

	"github.com/spf13/cobra"
)

var (
	actionRunArgs   string
	makeDefaultHost string
)

var appActionCmd = &cobra.Command{
	Use:   "action",
	Short: "List or run the actions an app declares (experimental)",
}

var appActionListCmd = &cobra.Command{
	Use:   "list <app>",
	Short: "List the actions of an app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		list, err := rt.orch.ListActions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(list.Actions))
		for _, a := range list.Actions {
			names := make([]string, 0, len(a.Arguments))
			for _, q := range a.Arguments {
				names = append(names, q.Name)
			}
			rows = append(rows, []string{a.ID, a.Name, strings.Join(names, ",")})
		}
		return render(rt, list, []string{"id", "name", "arguments"}, rows)
	},
}

var appActionRunCmd = &cobra.Command{
	Use:   "run <app> <action>",
	Short: "Run an action of an app",
	Long: `Run an action of an app. Answers to its questions are given as a
url-encoded string:

  appkeeper app action run nextcloud restart_service --args "service=php-fpm"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		answers, err := manifest.ParseArgs(actionRunArgs)
		if err != nil {
			return err
		}
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()
		return rt.orch.RunAction(ctx, args[0], args[1], answers)
	},
}

var appMakeDefaultCmd = &cobra.Command{
	Use:   "makedefault <app>",
	Short: "Redirect the root of a domain to an app",
	Long: `Redirect the root of a domain to an app. Without --domain the app's
own domain is used. The redirect survives every SSO regeneration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return rt.orch.MakeDefault(cmd.Context(), args[0], makeDefaultHost)
	},
}

var appChangeLabelCmd = &cobra.Command{
	Use:        "change-label <app> <label>",
	Short:      "Change the label shown in the user portal",
	Deprecated: "manage the label through the app's main permission instead",
	Args:       cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return rt.orch.ChangeLabel(cmd.Context(), args[0], args[1])
	},
}

func init() {
	appActionRunCmd.Flags().StringVarP(&actionRunArgs, "args", "a", "", "Url-encoded answers to the action questions")
	appMakeDefaultCmd.Flags().StringVarP(&makeDefaultHost, "domain", "d", "", "Domain to redirect (default: the app's own)")

	appActionCmd.AddCommand(appActionListCmd)
	appActionCmd.AddCommand(appActionRunCmd)
	appCmd.AddCommand(appActionCmd)
	appCmd.AddCommand(appMakeDefaultCmd)
	appCmd.AddCommand(appChangeLabelCmd)
}
