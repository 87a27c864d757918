package cmd

import (
	"os"

	"appkeeper/internal/api"
	"appkeeper/internal/config"
	"appkeeper/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeValidation indicates the request was rejected before any script ran.
	ExitCodeValidation = 2
	// ExitCodeExecution indicates a lifecycle script failed or was interrupted.
	ExitCodeExecution = 3
	// ExitCodeSystemHealth indicates the system was unhealthy before or after an operation.
	ExitCodeSystemHealth = 4
)

var (
	rootConfigPath   string
	rootLogLevel     string
	rootDebug        bool
	rootLogJSON      bool
	rootOutputFormat string
	rootQuiet        bool
)

// rootCmd represents the base command for the appkeeper application.
var rootCmd = &cobra.Command{
	Use:   "appkeeper",
	Short: "Install, upgrade and remove self-hosted web apps",
	Long: `appkeeper manages the lifecycle of packaged web applications on a
self-hosting server: it installs them from the app catalog, a git
repository or a local folder, keeps their settings and permissions,
upgrades and removes them, and moves them to another domain or path.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(rootLogLevel)
		if err != nil {
			return err
		}
		if rootDebug {
			level = logging.LevelDebug
		}
		if rootLogJSON {
			logging.InitJSON(level, cmd.ErrOrStderr())
		} else {
			logging.InitForCLI(level, cmd.ErrOrStderr())
		}
		return nil
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "appkeeper version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case api.IsSystemHealth(err):
		return ExitCodeSystemHealth
	case api.IsExecution(err):
		return ExitCodeExecution
	case api.IsValidation(err):
		return ExitCodeValidation
	default:
		return ExitCodeError
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", config.DefaultConfigPath, "Directory holding config.yaml")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Shortcut for --log-level=debug")
	rootCmd.PersistentFlags().BoolVar(&rootLogJSON, "log-json", false, "Write logs as JSON lines")
	rootCmd.PersistentFlags().StringVarP(&rootOutputFormat, "output", "o", "console", "Output format (console, json, yaml, table)")
	rootCmd.PersistentFlags().BoolVarP(&rootQuiet, "quiet", "q", false, "Suppress progress output")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(appCmd)
}
