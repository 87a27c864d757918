package cmd

import (
	"fmt"
	"sort"
	"time"

	"appkeeper/internal/formatting"
	"appkeeper/internal/orchestrator"
	"appkeeper/internal/webpath"

	"github.com/spf13/cobra"
)

var (
	appListFull bool
	appInfoFull bool
	appMapApp   string
	appMapUser  string
	appMapRaw   bool
)

// appCmd groups the app lifecycle commands.
var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Manage installed apps",
	Long: `Manage installed apps.

Each installed instance is identified by the app id, followed by __N for
the Nth instance of a multi-instance app (e.g. wordpress, wordpress__2).`,
}

var appListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed apps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		apps, err := rt.orch.List(cmd.Context(), appListFull)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(apps))
		for _, a := range apps {
			rows = append(rows, []string{a.ID, a.Name, a.Version, a.DomainPath})
		}
		return render(rt, map[string]interface{}{"apps": apps}, []string{"id", "name", "version", "domain_path"}, rows)
	},
}

var appInfoCmd = &cobra.Command{
	Use:   "info <app>",
	Short: "Show an installed app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		info, err := rt.orch.Info(cmd.Context(), args[0], appInfoFull)
		if err != nil {
			return err
		}
		if appInfoFull {
			return rt.out.FormatData(info)
		}
		brief := map[string]string{
			"id":          info.ID,
			"name":        info.Name,
			"description": info.Description,
			"version":     info.Version,
		}
		if info.DomainPath != "" {
			brief["domain_path"] = info.DomainPath
		}
		return rt.out.FormatData(brief)
	},
}

var appMapCmd = &cobra.Command{
	Use:   "map",
	Short: "Show the web locations served by apps",
	Long: `Show the web locations served by apps, as "domain/path: label".

With --raw the result is nested by domain then path and names the
instance serving each location.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		reg, flat, err := rt.orch.Map(cmd.Context(), orchestrator.MapRequest{App: appMapApp, User: appMapUser})
		if err != nil {
			return err
		}
		if appMapRaw {
			return rt.out.FormatData(reg)
		}
		return render(rt, map[string]string(flat), []string{"location", "label"}, flatRows(flat))
	},
}

var appSSOwatConfCmd = &cobra.Command{
	Use:   "ssowatconf",
	Short: "Regenerate the SSO configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return rt.orch.SSOwatConf(cmd.Context())
	},
}

var appManifestCmd = &cobra.Command{
	Use:   "manifest <source>",
	Short: "Print the normalized manifest of a package",
	Long: `Fetch a package and print its normalized manifest.

The source is a catalog id, a git repository url, a local folder or a
.tar/.tar.gz archive.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()
		m, err := rt.orch.Manifest(ctx, args[0])
		if err != nil {
			return err
		}
		return rt.out.FormatData(m)
	},
}

var appHistoryCmd = &cobra.Command{
	Use:   "history [app]",
	Short: "Show journaled operations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		var instance string
		if len(args) == 1 {
			instance = args[0]
		}
		entries, err := rt.journal.List(instance)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			status := "ok"
			if e.EndedAt == nil {
				status = "running"
			} else if !e.Success {
				status = "failed"
			}
			rows = append(rows, []string{e.StartedAt.Local().Format(time.DateTime), e.Operation, fmt.Sprint(e.RelatedTo), status})
		}
		return render(rt, entries, []string{"started", "operation", "related", "status"}, rows)
	},
}

// render writes rows for the console and table formats and data for the
// structured ones.
func render(rt *runtime, data interface{}, headers []string, rows [][]string) error {
	switch rt.out.GetOptions().Format {
	case formatting.FormatJSON, formatting.FormatYAML:
		return rt.out.FormatData(data)
	default:
		return rt.out.FormatRows(headers, rows)
	}
}

func flatRows(flat webpath.Flat) [][]string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, flat[k]})
	}
	return rows
}

func init() {
	appListCmd.Flags().BoolVar(&appListFull, "full", false, "Include settings, manifest and permissions")
	appInfoCmd.Flags().BoolVar(&appInfoFull, "full", false, "Include settings, manifest and permissions")
	appMapCmd.Flags().StringVar(&appMapApp, "app", "", "Only show locations of this app")
	appMapCmd.Flags().StringVar(&appMapUser, "user", "", "Only show locations this user may access")
	appMapCmd.Flags().BoolVar(&appMapRaw, "raw", false, "Nest by domain and path, with instance ids")

	appCmd.AddCommand(appListCmd)
	appCmd.AddCommand(appInfoCmd)
	appCmd.AddCommand(appMapCmd)
	appCmd.AddCommand(appSSOwatConfCmd)
	appCmd.AddCommand(appManifestCmd)
	appCmd.AddCommand(appHistoryCmd)
}
