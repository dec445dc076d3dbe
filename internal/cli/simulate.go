package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"healthguard/internal/monitor"
)

var (
	simulateStress    int
	simulateSpO2      int
	simulateHeartRate int
	simulateSleep     float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次风险升级并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch monitor.Patch
		flags := cmd.Flags()
		if flags.Changed("stress") {
			patch.StressLevel = &simulateStress
		}
		if flags.Changed("spo2") {
			patch.BloodOxygen = &simulateSpO2
		}
		if flags.Changed("heart-rate") {
			patch.HeartRate = &simulateHeartRate
		}
		if flags.Changed("sleep") {
			patch.SleepHours = &simulateSleep
		}
		if patch.Empty() {
			return errors.New("set at least one of --stress, --spo2, --heart-rate or --sleep")
		}
		return getApp().SimulateAlert(cmd.Context(), patch)
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateStress, "stress", 0, "压力值 0-100")
	simulateCmd.Flags().IntVar(&simulateSpO2, "spo2", 0, "血氧饱和度 %")
	simulateCmd.Flags().IntVar(&simulateHeartRate, "heart-rate", 0, "心率 BPM")
	simulateCmd.Flags().Float64Var(&simulateSleep, "sleep", 0, "睡眠时长（小时）")
}
