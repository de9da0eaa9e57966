package cmd

import (
	"fmt"

	"github.com/sharedlm/sharedlm/internal"
	"github.com/spf13/cobra"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Manage the local Ollama runtime",
}

var runtimeCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether Ollama is installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		provisioner := internal.NewProvisioner()
		if provisioner.IsInstalled(cmd.Context()) {
			internal.PrintSuccess("Ollama is installed")
			return nil
		}
		internal.PrintInfo("Ollama is not installed")
		return nil
	},
}

var runtimeInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install Ollama silently and disable its auto-start",
	RunE: func(cmd *cobra.Command, args []string) error {
		provisioner := internal.NewProvisioner()
		report, err := provisioner.Provision(cmd.Context(), func(percent int, status string) {
			fmt.Printf("[%3d%%] %s\n", percent, status)
		})
		for _, w := range report.Warnings {
			internal.PrintWarning(fmt.Sprintf("%s: %s", w.Step, w.Message))
		}
		if err != nil {
			return err
		}
		if report.AlreadyInstalled {
			internal.PrintSuccess("Ollama was already installed; silent mode configured")
		} else {
			internal.PrintSuccess("Ollama installed and configured")
		}
		return nil
	},
}

var runtimeSilenceCmd = &cobra.Command{
	Use:   "silence",
	Short: "Stop Ollama and disable its auto-start",
	RunE: func(cmd *cobra.Command, args []string) error {
		provisioner := internal.NewProvisioner()
		warnings := provisioner.ConfigureSilentMode(cmd.Context())
		for _, w := range warnings {
			internal.PrintWarning(fmt.Sprintf("%s: %s", w.Step, w.Message))
		}
		internal.PrintSuccess("Ollama silent mode configured")
		return nil
	},
}

var runtimeModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List locally available Ollama models",
	RunE: func(cmd *cobra.Command, args []string) error {
		provisioner := internal.NewProvisioner()
		models, err := provisioner.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		if len(models) == 0 {
			internal.PrintInfo("No local models found.")
			return nil
		}
		for _, model := range models {
			fmt.Println(model)
		}
		return nil
	},
}

func init() {
	runtimeCmd.AddCommand(runtimeCheckCmd)
	runtimeCmd.AddCommand(runtimeInstallCmd)
	runtimeCmd.AddCommand(runtimeSilenceCmd)
	runtimeCmd.AddCommand(runtimeModelsCmd)

	rootCmd.AddCommand(runtimeCmd)
}
