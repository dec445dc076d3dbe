package monitor

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidPatch wraps every validation failure returned by Patch.Validate.
var ErrInvalidPatch = errors.New("invalid metric patch")

var bloodPressurePattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)

// Patch is a partial update of the raw dashboard values. Nil fields are left
// untouched.
type Patch struct {
	HeartRate   *int     `json:"heart_rate,omitempty" yaml:"heart_rate,omitempty"`
	StressLevel *int     `json:"stress_level,omitempty" yaml:"stress_level,omitempty"`
	StepCount   *int     `json:"step_count,omitempty" yaml:"step_count,omitempty"`
	SleepHours  *float64 `json:"sleep_hours,omitempty" yaml:"sleep_hours,omitempty"`
	BloodOxygen *int     `json:"blood_oxygen,omitempty" yaml:"blood_oxygen,omitempty"`

	HeartRateMin  *int     `json:"heart_rate_min,omitempty" yaml:"heart_rate_min,omitempty"`
	HeartRateMax  *int     `json:"heart_rate_max,omitempty" yaml:"heart_rate_max,omitempty"`
	BloodPressure *string  `json:"blood_pressure,omitempty" yaml:"blood_pressure,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	StepsGoal     *int     `json:"steps_goal,omitempty" yaml:"steps_goal,omitempty"`
	Calories      *int     `json:"calories,omitempty" yaml:"calories,omitempty"`
	ActiveMinutes *int     `json:"active_minutes,omitempty" yaml:"active_minutes,omitempty"`
	DistanceKm    *float64 `json:"distance_km,omitempty" yaml:"distance_km,omitempty"`
	SleepQuality  *int     `json:"sleep_quality,omitempty" yaml:"sleep_quality,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Validate rejects values the dashboard cannot display. The scoring engine
// itself accepts any number; range checks live here, at the edge.
func (p Patch) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if p.HeartRate != nil {
		check(*p.HeartRate > 0 && *p.HeartRate < 300, "heart_rate %d out of range (1-299)", *p.HeartRate)
	}
	if p.StressLevel != nil {
		check(*p.StressLevel >= 0 && *p.StressLevel <= 100, "stress_level %d out of range (0-100)", *p.StressLevel)
	}
	if p.StepCount != nil {
		check(*p.StepCount >= 0, "step_count %d must not be negative", *p.StepCount)
	}
	if p.SleepHours != nil {
		check(*p.SleepHours >= 0 && *p.SleepHours <= 24, "sleep_hours %.2f out of range (0-24)", *p.SleepHours)
	}
	if p.BloodOxygen != nil {
		check(*p.BloodOxygen >= 0 && *p.BloodOxygen <= 100, "blood_oxygen %d out of range (0-100)", *p.BloodOxygen)
	}
	if p.HeartRateMin != nil && p.HeartRateMax != nil {
		check(*p.HeartRateMin <= *p.HeartRateMax, "heart_rate_min %d above heart_rate_max %d", *p.HeartRateMin, *p.HeartRateMax)
	}
	if p.BloodPressure != nil {
		check(bloodPressurePattern.MatchString(*p.BloodPressure), "blood_pressure %q must look like 118/78", *p.BloodPressure)
	}
	if p.StepsGoal != nil {
		check(*p.StepsGoal > 0, "steps_goal must be positive")
	}
	for name, v := range map[string]*int{"calories": p.Calories, "active_minutes": p.ActiveMinutes, "sleep_quality": p.SleepQuality} {
		if v != nil {
			check(*v >= 0, "%s %d must not be negative", name, *v)
		}
	}
	if p.DistanceKm != nil {
		check(*p.DistanceKm >= 0, "distance_km must not be negative")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPatch, errors.Join(errs...))
}

// applyTo merges the patch into d and returns the result.
func (p Patch) applyTo(d Dashboard) Dashboard {
	setInt(&d.HeartRate, p.HeartRate)
	setInt(&d.StressLevel, p.StressLevel)
	setInt(&d.StepCount, p.StepCount)
	setFloat(&d.SleepHours, p.SleepHours)
	setInt(&d.BloodOxygen, p.BloodOxygen)

	setInt(&d.HeartRateMin, p.HeartRateMin)
	setInt(&d.HeartRateMax, p.HeartRateMax)
	if p.BloodPressure != nil {
		d.BloodPressure = *p.BloodPressure
	}
	setFloat(&d.Temperature, p.Temperature)
	setInt(&d.StepsGoal, p.StepsGoal)
	setInt(&d.Calories, p.Calories)
	setInt(&d.ActiveMinutes, p.ActiveMinutes)
	setFloat(&d.DistanceKm, p.DistanceKm)
	setInt(&d.SleepQuality, p.SleepQuality)
	return d
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Int returns a pointer to v, for building patches inline.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
