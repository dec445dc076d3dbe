package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [analysis]",
	Short: "Ask the AI assistant for recommendations",
	Long:  "Ask the AI assistant for recommendations. Without an argument the current status message is analysed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Recommend(cmd.Context(), strings.Join(args, " "))
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generate the weekly summary and share text",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Summary(cmd.Context())
	},
}

var coachCmd = &cobra.Command{
	Use:   "coach",
	Short: "Chat with the AI health coach (type exit to leave)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Coach(cmd.Context(), cmd.InOrStdin())
	},
}

var speakOutput string

var speakCmd = &cobra.Command{
	Use:   "speak <text>",
	Short: "Synthesise text to a WAV file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Speak(cmd.Context(), strings.Join(args, " "), speakOutput)
	},
}

func init() {
	speakCmd.Flags().StringVarP(&speakOutput, "output", "o", "speech.wav", "Path of the WAV file")
}
