package cmd

import (
	"appkeeper/internal/api"

	"github.com/spf13/cobra"
)

var (
	settingValue  string
	settingDelete bool
)

var appSettingCmd = &cobra.Command{
	Use:   "setting <app> <key>",
	Short: "Get, set or delete an app setting",
	Long: `Get, set or delete an app setting.

Without --value or --delete the current value is printed. A value of "-"
is read from stdin.

The legacy keys unprotected_uris, protected_uris, skipped_uris and their
_regex variants are stored as permissions rather than settings.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, key := args[0], args[1]
		setting := cmd.Flags().Changed("value")
		if setting && settingDelete {
			return api.NewValidationError(api.KeyArgumentInvalid, "--value and --delete are mutually exclusive")
		}

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()

		switch {
		case settingDelete:
			return rt.orch.DeleteSetting(ctx, id, key)
		case setting:
			value, err := readValue(cmd, settingValue)
			if err != nil {
				return err
			}
			return rt.orch.SetSetting(ctx, id, key, value)
		default:
			value, ok, err := rt.orch.GetSetting(ctx, id, key)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			return rt.out.FormatData(value)
		}
	},
}

var appRegisterURLCmd = &cobra.Command{
	Use:   "register-url <app> <domain> <path>",
	Short: "Give an app installed without a web location a domain and path",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return rt.orch.RegisterURL(cmd.Context(), args[0], args[1], args[2])
	},
}

func init() {
	appSettingCmd.Flags().StringVarP(&settingValue, "value", "v", "", "Set the setting to this value")
	appSettingCmd.Flags().BoolVarP(&settingDelete, "delete", "d", false, "Delete the setting")

	appCmd.AddCommand(appSettingCmd)
	appCmd.AddCommand(appRegisterURLCmd)
}
