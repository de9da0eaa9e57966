package cmd

import (
	"fmt"
	"strings"

	"github.com/sharedlm/sharedlm/internal"
	"github.com/spf13/cobra"
)

var (
	chatProvider string
	chatModel    string
	chatSession  string
	chatProject  string
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a chat message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		message := internal.SanitizeInput(strings.Join(args, " "))
		if message == "" {
			return fmt.Errorf("message is empty after sanitization")
		}

		result, err := a.client.SendChatMessage(cmd.Context(), internal.ChatRequest{
			Message:       message,
			ModelProvider: chatProvider,
			ModelChoice:   chatModel,
			SessionID:     chatSession,
			ProjectID:     chatProject,
		})
		if err != nil {
			return err
		}

		fmt.Println(result.Reply)
		if result.UsedModel != "" {
			internal.LogDebug("model used: %s", result.UsedModel)
		}
		a.sessions.Touch()
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available to your account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.client.GetModels(cmd.Context())
		if err != nil {
			return err
		}
		if len(result.AvailableModels) == 0 {
			internal.PrintInfo("No models available.")
			return nil
		}
		for _, model := range result.AvailableModels {
			if model.Provider != "" {
				fmt.Printf("%s (%s)\n", model.ID, model.Provider)
			} else {
				fmt.Println(model.ID)
			}
		}
		return nil
	},
}

var uploadConversation string

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file to a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.client.UploadFile(cmd.Context(), args[0], uploadConversation)
		if err != nil {
			return err
		}
		internal.PrintSuccess(fmt.Sprintf("Uploaded %s", result.File.Filename))
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "Model provider")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Model to use")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Conversation session id")
	chatCmd.Flags().StringVar(&chatProject, "project", "", "Project id")
	uploadCmd.Flags().StringVar(&uploadConversation, "conversation", "", "Conversation id to attach the file to")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(uploadCmd)
}
