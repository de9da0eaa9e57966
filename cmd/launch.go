package cmd

import (
	"fmt"
	"runtime"

	"github.com/sharedlm/sharedlm/internal"
	"github.com/spf13/cobra"
)

var launchPath string

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch the installed SharedLM application",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := launchPath
		if path == "" {
			config, err := internal.LoadConfig()
			if err != nil {
				return err
			}
			settings, err := internal.LoadSettings(config.SettingsPath())
			if err != nil {
				return err
			}
			path = settings.InstallPath
		}
		if path == "" {
			return fmt.Errorf("no installation found: run 'sharedlm install' first or pass --path")
		}

		if installConfig, err := internal.ReadInstallConfig(path); err == nil {
			internal.LogDebug("launching installation from %s", installConfig.InstalledAt)
		}

		if err := internal.LaunchApplication(cmd.Context(), internal.ExecRunner{}, runtime.GOOS, path); err != nil {
			return err
		}
		internal.PrintSuccess("SharedLM launched")
		return nil
	},
}

func init() {
	launchCmd.Flags().StringVar(&launchPath, "path", "", "Installation directory")
	rootCmd.AddCommand(launchCmd)
}
