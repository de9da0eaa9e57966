package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sharedlm/sharedlm/internal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	auditType     string
	auditLevel    string
	auditSecurity bool
	auditLimit    int
	auditFormat   string
	auditClear    bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the local security audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if auditClear {
			a.audit.ClearLogs()
			internal.PrintSuccess("Audit log cleared")
			return nil
		}

		var entries []internal.AuditEntry
		switch {
		case auditSecurity:
			entries = a.audit.GetSecurityLogs()
		case auditType != "":
			entries = a.audit.GetLogsByType(internal.EventType(auditType))
		case auditLevel != "":
			entries = a.audit.GetLogsByLevel(internal.AuditLevel(auditLevel))
		default:
			entries = a.audit.GetLogs(auditLimit)
		}

		switch auditFormat {
		case "json":
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(entries)
		case "yaml":
			data, err := yaml.Marshal(entries)
			if err != nil {
				return fmt.Errorf("failed to marshal audit log: %w", err)
			}
			os.Stdout.Write(data)
			return nil
		case "text":
			if len(entries) == 0 {
				internal.PrintInfo("Audit log is empty.")
				return nil
			}
			for _, entry := range entries {
				fmt.Printf("%s  %-9s %-22s %s\n", entry.Timestamp, entry.Level, entry.EventType, entry.Message)
			}
			return nil
		default:
			return fmt.Errorf("unknown format %q (want text, json or yaml)", auditFormat)
		}
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditType, "type", "", "Filter by event type")
	auditCmd.Flags().StringVar(&auditLevel, "level", "", "Filter by level (info, warning, error, security)")
	auditCmd.Flags().BoolVar(&auditSecurity, "security", false, "Show security-level events only")
	auditCmd.Flags().IntVar(&auditLimit, "limit", internal.MaxLogEntries, "Maximum entries to show")
	auditCmd.Flags().StringVar(&auditFormat, "format", "text", "Output format (text, json, yaml)")
	auditCmd.Flags().BoolVar(&auditClear, "clear", false, "Clear the audit log")

	rootCmd.AddCommand(auditCmd)
}
