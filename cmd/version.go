package cmd

import (
	"fmt"
	goruntime "runtime"

	"appkeeper/internal/formatting"

	"github.com/spf13/cobra"
)

// newVersionCmd prints the build version. The structured output formats
// also report the Go toolchain and platform.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of appkeeper",
		Long:  `Print the appkeeper version. With --output json or yaml the Go version and platform are included.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatting.ParseFormat(rootOutputFormat)
			if err != nil {
				return err
			}
			switch format {
			case formatting.FormatJSON, formatting.FormatYAML:
				out := formatting.New(formatting.Options{Format: format, Out: cmd.OutOrStdout()})
				return out.FormatData(map[string]string{
					"version":  rootCmd.Version,
					"go":       goruntime.Version(),
					"platform": goruntime.GOOS + "/" + goruntime.GOARCH,
				})
			default:
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "appkeeper version %s\n", rootCmd.Version)
				return err
			}
		},
	}
}
