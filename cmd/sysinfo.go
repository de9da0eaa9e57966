package cmd

import (
	"fmt"
	"strings"

	"github.com/sharedlm/sharedlm/internal"
	"github.com/spf13/cobra"
)

var sysinfoPath string

var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Show host hardware information",
	RunE: func(cmd *cobra.Command, args []string) error {
		probe := internal.NewProbe()
		info := probe.SystemInfo(cmd.Context())

		fmt.Printf("Platform: %s/%s\n", info.Platform, info.Arch)
		fmt.Printf("RAM:      %.1f GB total, %.1f GB free, %.1f GB used\n", info.RAM.TotalGB, info.RAM.FreeGB, info.RAM.UsedGB)
		fmt.Printf("CPU:      %s (%d cores", info.CPU.Model, info.CPU.Cores)
		if info.CPU.SpeedMHz > 0 {
			fmt.Printf(", %d MHz", info.CPU.SpeedMHz)
		}
		fmt.Println(")")
		fmt.Printf("GPU:      %s\n", strings.Join(info.GPU, ", "))
		if info.HasDedicatedGPU {
			internal.PrintSuccess("Dedicated GPU detected")
		} else {
			internal.PrintInfo("No dedicated GPU detected")
		}

		if sysinfoPath != "" {
			disk := probe.DiskSpace(cmd.Context(), sysinfoPath)
			if disk.TotalGB == 0 {
				internal.PrintWarning(fmt.Sprintf("Disk space unknown for %s", sysinfoPath))
			} else {
				fmt.Printf("Disk:     %.1f GB free of %.1f GB at %s\n", disk.FreeGB, disk.TotalGB, sysinfoPath)
			}
		}
		return nil
	},
}

func init() {
	sysinfoCmd.Flags().StringVar(&sysinfoPath, "path", "", "Also report disk space for this path")
	rootCmd.AddCommand(sysinfoCmd)
}
