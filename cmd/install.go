package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sharedlm/sharedlm/internal"
	"github.com/spf13/cobra"
)

var (
	installPath    string
	installModels  []string
	installSources []string
	skipRuntime    bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the SharedLM application and its local AI runtime",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := installPath
		if path == "" {
			detected, err := defaultInstallPath()
			if err != nil {
				return err
			}
			path = detected
		}

		probe := internal.NewProbe()
		disk := probe.DiskSpace(cmd.Context(), filepath.Dir(path))
		if disk.TotalGB > 0 && disk.FreeGB < 2 {
			internal.PrintWarning(fmt.Sprintf("Low disk space: %.1f GB free at %s", disk.FreeGB, path))
		}

		sources := installSources
		if len(sources) == 0 {
			sources = defaultAppSources()
		}

		installer := internal.NewInstaller(internal.NewProvisioner())
		events, err := installer.Run(cmd.Context(), internal.InstallOptions{
			InstallPath:   path,
			Models:        installModels,
			AppSourceDirs: sources,
			SkipRuntime:   skipRuntime,
		})
		if err != nil {
			return err
		}

		if err := internal.RenderInstallEvents(events); err != nil {
			return err
		}

		// Remember the install path for `sharedlm launch`.
		if config, err := internal.LoadConfig(); err == nil {
			settings, err := internal.LoadSettings(config.SettingsPath())
			if err == nil {
				settings.InstallPath = path
				if err := internal.SaveSettings(config.SettingsPath(), settings); err != nil {
					internal.LogWarn("failed to persist install path: %v", err)
				}
			}
		}

		internal.PrintSuccess(fmt.Sprintf("SharedLM installed at %s", path))
		return nil
	},
}

func defaultInstallPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "SharedLM"), nil
		}
		return filepath.Join(home, "AppData", "Local", "SharedLM"), nil
	case "darwin":
		return filepath.Join(home, "Applications", "SharedLM"), nil
	default:
		return filepath.Join(home, ".local", "share", "sharedlm"), nil
	}
}

// defaultAppSources are probed for the application files bundled next to
// the installer binary.
func defaultAppSources() []string {
	var sources []string
	if executable, err := os.Executable(); err == nil {
		base := filepath.Dir(executable)
		sources = append(sources,
			filepath.Join(base, "app"),
			filepath.Join(base, "..", "Resources", "app"),
		)
	}
	if wd, err := os.Getwd(); err == nil {
		sources = append(sources, filepath.Join(wd, "app"))
	}
	return sources
}

func init() {
	installCmd.Flags().StringVar(&installPath, "path", "", "Installation directory")
	installCmd.Flags().StringSliceVar(&installModels, "model", nil, "Model identifiers to record for first launch")
	installCmd.Flags().StringSliceVar(&installSources, "source", nil, "Application source directories to probe")
	installCmd.Flags().BoolVar(&skipRuntime, "skip-runtime", false, "Skip Ollama provisioning")

	rootCmd.AddCommand(installCmd)
}
