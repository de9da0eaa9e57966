package cmd

import (
	"fmt"
	"os"

	"github.com/sharedlm/sharedlm/internal"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	dataDir string
	apiURL  string
	version string = "dev"
	commit  string = "unknown"
	date    string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sharedlm",
	Short: "SharedLM multi-provider LLM chat client and installer",
	Long: `SharedLM command-line client for the SharedLM backend, plus the
setup tooling that installs the desktop application and its optional
local AI runtime.

The client keeps a local session with wall-clock expiry, rate limits
its own API calls, and records security-relevant events in a bounded
audit log.

Quick Start:
  sharedlm login --email you@example.com   # Authenticate
  sharedlm chat "hello"                    # Send a chat message
  sharedlm status                          # Inspect session state
  sharedlm install --path ~/SharedLM       # Run the installer`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Custom data directory (defaults to the platform data dir)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "SharedLM backend URL (defaults to SHAREDLM_API_URL)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
