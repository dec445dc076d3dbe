package cli

import (
	"github.com/spf13/cobra"

	"healthguard/internal/app"
)

var exportOpts app.ExportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the day series as CSV, PNG charts and/or an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), exportOpts)
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOpts.Dir, "dir", "", "Output directory (defaults to config)")
	f.StringSliceVar(&exportOpts.Metrics, "metrics", nil, "Metrics to export, e.g. heart-rate,spo2 (default all)")
	f.BoolVar(&exportOpts.CSV, "csv", false, "Write the series as CSV")
	f.BoolVar(&exportOpts.PNG, "png", false, "Write one PNG chart per metric plus the profile chart")
	f.BoolVar(&exportOpts.XLSX, "xlsx", false, "Write an XLSX workbook")
	f.Uint64Var(&exportOpts.Seed, "seed", 0, "Fix the series noise for reproducible output")
}
