package cmd

import (
	"fmt"
	"time"

	"github.com/sharedlm/sharedlm/internal"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and backend status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		validity := a.sessions.Validity()
		switch {
		case validity.Valid:
			expiry, _ := a.sessions.Expiry()
			internal.PrintSuccess(fmt.Sprintf("Session valid until %s (%s remaining)",
				expiry.Local().Format(time.RFC1123), a.sessions.TimeUntilExpiry().Round(time.Minute)))
			if userID := a.auth.UserID(); userID != "" {
				fmt.Printf("User ID: %s\n", userID)
			}
			if tokenExpiry, err := a.auth.TokenExpiry(); err == nil {
				fmt.Printf("Token expires: %s\n", tokenExpiry.Local().Format(time.RFC1123))
			}
		case validity.Expired:
			internal.PrintWarning("Session expired. Run 'sharedlm login' to sign in again.")
		default:
			internal.PrintInfo("Not logged in.")
		}

		health := a.client.CheckHealth(cmd.Context())
		if health.Status == "error" {
			internal.PrintWarning(fmt.Sprintf("Backend unreachable: %s", health.Message))
		} else {
			internal.PrintSuccess(fmt.Sprintf("Backend status: %s", health.Status))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
