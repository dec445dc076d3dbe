package cli

import (
	"github.com/spf13/cobra"

	"healthguard/internal/app"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the scored dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{JSON: showJSON})
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the dashboard as JSON")
}
