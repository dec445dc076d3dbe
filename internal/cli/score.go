package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"healthguard/internal/app"
	"healthguard/internal/monitor"
)

var (
	scoreOpts    app.ScoreOptions
	scoreMetrics = monitor.Seed().Metrics
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Evaluate a set of vital signs without touching any state",
	Example: `  healthguard score --stress 85 --sleep 5
  healthguard score --spo2 90 --explain --locale de`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scoreMetrics.SleepHours < 0 || scoreMetrics.StepCount < 0 {
			return fmt.Errorf("--sleep and --steps must not be negative")
		}
		opts := scoreOpts
		opts.Metrics = scoreMetrics
		return getApp().Score(cmd.Context(), opts)
	},
}

func init() {
	f := scoreCmd.Flags()
	f.IntVar(&scoreMetrics.HeartRate, "heart-rate", scoreMetrics.HeartRate, "Heart rate in BPM")
	f.IntVar(&scoreMetrics.StressLevel, "stress", scoreMetrics.StressLevel, "Stress level 0-100")
	f.IntVar(&scoreMetrics.StepCount, "steps", scoreMetrics.StepCount, "Steps today")
	f.Float64Var(&scoreMetrics.SleepHours, "sleep", scoreMetrics.SleepHours, "Sleep last night in hours")
	f.IntVar(&scoreMetrics.BloodOxygen, "spo2", scoreMetrics.BloodOxygen, "Blood oxygen saturation in percent")
	f.StringVar(&scoreOpts.Locale, "locale", "", "Message catalog (defaults to config)")
	f.BoolVar(&scoreOpts.Explain, "explain", false, "List the rules that fired")
	f.BoolVar(&scoreOpts.JSON, "json", false, "Print the result as JSON")
}
