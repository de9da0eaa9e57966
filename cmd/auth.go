package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sharedlm/sharedlm/internal"
	"github.com/spf13/cobra"
)

var (
	loginEmail     string
	loginPassword  string
	signupEmail    string
	signupPassword string
	signupName     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the SharedLM backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		email := loginEmail
		if email == "" {
			email = promptLine("Email: ")
		}
		if !internal.IsValidEmail(email) {
			return fmt.Errorf("invalid email address")
		}

		password := loginPassword
		if password == "" {
			password = promptLine("Password: ")
		}

		result, err := a.client.Login(cmd.Context(), email, password)
		if err != nil {
			return err
		}

		a.sessions.CreateSession(internal.UserData{
			ID:          result.User.ID,
			Email:       result.User.Email,
			DisplayName: result.User.DisplayName,
			Token:       firstNonEmpty(result.Token, result.User.Token),
		})

		internal.PrintSuccess(fmt.Sprintf("Logged in as %s", result.User.Email))
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a SharedLM account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		email := signupEmail
		if email == "" {
			email = promptLine("Email: ")
		}
		if !internal.IsValidEmail(email) {
			return fmt.Errorf("invalid email address")
		}

		password := signupPassword
		if password == "" {
			password = promptLine("Password: ")
		}

		validation := internal.ValidatePassword(password)
		if !validation.Valid {
			for _, reason := range validation.Errors {
				internal.PrintError(reason)
			}
			return fmt.Errorf("password does not meet requirements")
		}
		if validation.Strength == internal.StrengthWeak {
			internal.PrintWarning("Weak password accepted; consider a longer one.")
		}

		name := internal.SanitizeInput(signupName)
		result, err := a.client.Signup(cmd.Context(), email, password, name)
		if err != nil {
			return err
		}

		a.sessions.CreateSession(internal.UserData{
			ID:          result.User.ID,
			Email:       result.User.Email,
			DisplayName: result.User.DisplayName,
			Token:       firstNonEmpty(result.Token, result.User.Token),
		})

		internal.PrintSuccess(fmt.Sprintf("Account created for %s", result.User.Email))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.client.Logout()
		internal.PrintSuccess("Logged out")
		return nil
	},
}

func promptLine(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted if omitted)")
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "Account email")
	signupCmd.Flags().StringVar(&signupPassword, "password", "", "Account password (prompted if omitted)")
	signupCmd.Flags().StringVar(&signupName, "name", "", "Display name")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
}
