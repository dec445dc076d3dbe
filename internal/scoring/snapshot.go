// Package scoring derives the wellness score, risk status, status message and
// radar profile from a snapshot of raw vital signs.
//
// The engine is a pure function of its input: it never mutates the snapshot
// it receives and keeps no state between calls, so a single Engine can be
// shared by any number of goroutines.
package scoring

// RiskStatus is the categorical risk tier derived from the rule cascade.
type RiskStatus string

const (
	RiskLow    RiskStatus = "low"
	RiskMedium RiskStatus = "medium"
	RiskHigh   RiskStatus = "high"
)

// Rank orders risk statuses so callers can detect escalation.
// Unknown values rank below RiskLow.
func Rank(s RiskStatus) int {
	switch s {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the three known tiers.
func (s RiskStatus) Valid() bool {
	return Rank(s) > 0
}

// Axis identifies one spoke of the radar chart.
type Axis string

const (
	AxisCardio      Axis = "cardio"
	AxisRespiration Axis = "respiration"
	AxisSleep       Axis = "sleep"
	AxisActivity    Axis = "activity"
	AxisStress      Axis = "stress"
)

// Axes lists the radar axes in their fixed display order.
var Axes = [5]Axis{AxisCardio, AxisRespiration, AxisSleep, AxisActivity, AxisStress}

const (
	idxCardio = iota
	idxRespiration
	idxSleep
	idxActivity
	idxStress
)

// RadarPoint is a single labelled value on the radar chart.
type RadarPoint struct {
	Axis  Axis    `json:"axis" yaml:"axis"`
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

// RadarProfile is always five points in Axes order. Being an array, it is
// copied on assignment and never aliased between snapshots.
type RadarProfile [5]RadarPoint

// Value returns the value stored for axis a.
func (p RadarProfile) Value(a Axis) float64 {
	v, _ := p.Lookup(a)
	return v
}

// Lookup finds the point labelled with axis a, wherever it sits.
func (p RadarProfile) Lookup(a Axis) (float64, bool) {
	for _, pt := range p {
		if pt.Axis == a {
			return pt.Value, true
		}
	}
	return 0, false
}

// Metrics are the raw vital signs the cascade reads.
type Metrics struct {
	HeartRate   int     `json:"heart_rate" yaml:"heart_rate"`
	StressLevel int     `json:"stress_level" yaml:"stress_level"`
	StepCount   int     `json:"step_count" yaml:"step_count"`
	SleepHours  float64 `json:"sleep_hours" yaml:"sleep_hours"`
	BloodOxygen int     `json:"blood_oxygen" yaml:"blood_oxygen"`
}

// Snapshot is the raw metrics plus the derived fields the engine recomputes.
type Snapshot struct {
	Metrics

	Score         int          `json:"score"`
	RiskStatus    RiskStatus   `json:"risk_status"`
	StatusMessage string       `json:"status_message"`
	Radar         RadarProfile `json:"radar"`
}
