package cmd

import (
	"appkeeper/internal/api"
	"appkeeper/internal/manifest"
	"appkeeper/internal/orchestrator"

	"github.com/spf13/cobra"
)

var (
	installLabel             string
	installArgs              string
	installForce             bool
	installNoRemoveOnFailure bool

	upgradeURL            string
	upgradeFile           string
	upgradeForce          bool
	upgradeNoSafetyBackup bool

	removePurge bool
)

var appInstallCmd = &cobra.Command{
	Use:   "install <source>",
	Short: "Install an app",
	Long: `Install an app from a catalog id, a git repository url, a local folder
or a .tar/.tar.gz archive.

Answers to the install questions are given as a url-encoded string:

  appkeeper app install wordpress --args "domain=example.org&path=/blog&admin=alice"

If the install script fails the instance is removed again, unless
--no-remove-on-failure is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		answers, err := manifest.ParseArgs(installArgs)
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
		id, err := rt.orch.Install(ctx, orchestrator.InstallRequest{
			Source:            args[0],
			Label:             installLabel,
			Args:              answers,
			Force:             installForce,
			NoRemoveOnFailure: installNoRemoveOnFailure,
		})
		if err != nil {
			return err
		}
		return rt.out.FormatData(map[string]string{"id": id})
	},
}

var appUpgradeCmd = &cobra.Command{
	Use:   "upgrade [app...]",
	Short: "Upgrade apps",
	Long: `Upgrade the given apps, or every installed app when none is given.

Apps are upgraded one after the other. The first failure stops the batch:
the apps after it are not attempted, and the ones before it stay upgraded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if upgradeURL != "" && upgradeFile != "" {
			return api.NewValidationError(api.KeyArgumentInvalid, "--url and --file are mutually exclusive")
		}
		source := upgradeURL
		if upgradeFile != "" {
			source = upgradeFile
		}
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()
		report, err := rt.orch.Upgrade(ctx, orchestrator.UpgradeRequest{
			Apps:           args,
			Source:         source,
			Force:          upgradeForce,
			NoSafetyBackup: upgradeNoSafetyBackup,
		})
		if report != nil {
			if ferr := rt.out.FormatData(report); ferr != nil && err == nil {
				err = ferr
			}
		}
		return err
	},
}

var appRemoveCmd = &cobra.Command{
	Use:   "remove <app>",
	Short: "Remove an app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()
		return rt.orch.Remove(ctx, args[0], removePurge)
	},
}

var appChangeURLCmd = &cobra.Command{
	Use:   "change-url <app> <domain> [path]",
	Short: "Move an app to another domain or path",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 3 {
			path = args[2]
		}
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()
		return rt.orch.ChangeURL(ctx, args[0], args[1], path)
	},
}

func init() {
	appInstallCmd.Flags().StringVarP(&installLabel, "label", "l", "", "Label shown in the user portal (default: the app name)")
	appInstallCmd.Flags().StringVarP(&installArgs, "args", "a", "", "Url-encoded answers to the install questions")
	appInstallCmd.Flags().BoolVar(&installForce, "force", false, "Do not ask before installing an unofficial or broken package")
	appInstallCmd.Flags().BoolVar(&installNoRemoveOnFailure, "no-remove-on-failure", false, "Keep a failed install for debugging")

	appUpgradeCmd.Flags().StringVarP(&upgradeURL, "url", "u", "", "Upgrade from this git repository url")
	appUpgradeCmd.Flags().StringVarP(&upgradeFile, "file", "f", "", "Upgrade from this folder or archive")
	appUpgradeCmd.Flags().BoolVarP(&upgradeForce, "force", "F", false, "Run the upgrade script even when up to date")
	appUpgradeCmd.Flags().BoolVar(&upgradeNoSafetyBackup, "no-safety-backup", false, "Ask the upgrade script to skip its safety backup")

	appRemoveCmd.Flags().BoolVar(&removePurge, "purge", false, "Also remove the app data")

	appCmd.AddCommand(appInstallCmd)
	appCmd.AddCommand(appUpgradeCmd)
	appCmd.AddCommand(appRemoveCmd)
	appCmd.AddCommand(appChangeURLCmd)
}
