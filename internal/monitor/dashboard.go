package monitor

import (
	"healthguard/internal/scoring"
)

// Dashboard is the scored snapshot plus the card values the dashboard shows
// next to it. Only the embedded snapshot feeds the scoring engine.
type Dashboard struct {
	scoring.Snapshot

	HeartRateMin  int     `json:"heart_rate_min" yaml:"heart_rate_min"`
	HeartRateMax  int     `json:"heart_rate_max" yaml:"heart_rate_max"`
	BloodPressure string  `json:"blood_pressure" yaml:"blood_pressure"`
	Temperature   float64 `json:"temperature" yaml:"temperature"`
	StepsGoal     int     `json:"steps_goal" yaml:"steps_goal"`
	Calories      int     `json:"calories" yaml:"calories"`
	ActiveMinutes int     `json:"active_minutes" yaml:"active_minutes"`
	DistanceKm    float64 `json:"distance_km" yaml:"distance_km"`
	SleepQuality  int     `json:"sleep_quality" yaml:"sleep_quality"`
	ScoreChange   string  `json:"score_change" yaml:"score_change"`
}

// Seed returns the dashboard as it looks at process start, before scoring.
func Seed() Dashboard {
	return Dashboard{
		Snapshot: scoring.Snapshot{
			Metrics: scoring.Metrics{
				HeartRate:   68,
				StressLevel: 35,
				StepCount:   8432,
				SleepHours:  7.5,
				BloodOxygen: 98,
			},
			Radar: scoring.RadarProfile{
				{Axis: scoring.AxisCardio, Value: 0.9},
				{Axis: scoring.AxisRespiration, Value: 0.95},
				{Axis: scoring.AxisSleep, Value: 0.9},
				{Axis: scoring.AxisActivity, Value: 0.85},
				{Axis: scoring.AxisStress, Value: 0.65},
			},
		},
		HeartRateMin:  58,
		HeartRateMax:  145,
		BloodPressure: "118/78",
		Temperature:   36.7,
		StepsGoal:     10000,
		Calories:      2145,
		ActiveMinutes: 67,
		DistanceKm:    6.2,
		SleepQuality:  82,
		ScoreChange:   "+5%",
	}
}

// StressBand classifies the current stress level for the stress card.
func (d Dashboard) StressBand() scoring.Band {
	return scoring.StressBand(d.StressLevel)
}

// StepsProgress is the step count as a percentage of the daily goal.
func (d Dashboard) StepsProgress() float64 {
	if d.StepsGoal <= 0 {
		return 0
	}
	return float64(d.StepCount) / float64(d.StepsGoal) * 100
}
