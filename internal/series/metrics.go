package series

import (
	"errors"

	"healthguard/internal/monitor"
)

// ErrUnknownMetric is returned for a metric name without a series.
var ErrUnknownMetric = errors.New("unknown metric")

// Spec describes how a metric's day series is drawn.
type Spec struct {
	Name  string  `json:"name"`
	Title string  `json:"title"`
	Unit  string  `json:"unit"`
	Color string  `json:"color"`
	YMin  float64 `json:"y_min"`
	YMax  float64 `json:"y_max"`

	fluctuation float64
	value       func(d monitor.Dashboard) float64
}

var specs = []Spec{
	{Name: "heart-rate", Title: "Heart rate", Unit: "BPM", Color: "#ef4444", YMin: 40, YMax: 160,
		value: func(d monitor.Dashboard) float64 { return float64(d.HeartRate) }},
	{Name: "blood-pressure", Title: "Blood pressure", Unit: "mmHg", Color: "#3b82f6", YMin: 60, YMax: 180,
		value: func(monitor.Dashboard) float64 { return 120 }},
	{Name: "spo2", Title: "SpO2", Unit: "%", Color: "#14b8a6", YMin: 90, YMax: 100, fluctuation: 0.02,
		value: func(d monitor.Dashboard) float64 { return float64(d.BloodOxygen) }},
	{Name: "temperature", Title: "Temperature", Unit: "°C", Color: "#f97316", YMin: 35, YMax: 39, fluctuation: 0.01,
		value: func(d monitor.Dashboard) float64 { return d.Temperature }},
	{Name: "steps", Title: "Steps", Color: "#22c55e", fluctuation: 0.8,
		value: func(d monitor.Dashboard) float64 { return float64(d.StepCount) }},
	{Name: "calories", Title: "Calories", Unit: "kcal", Color: "#f97316", YMin: 0, YMax: 3000, fluctuation: 0.7,
		value: func(d monitor.Dashboard) float64 { return float64(d.Calories) }},
	{Name: "active-minutes", Title: "Active minutes", Unit: "min", Color: "#0ea5e9", YMin: 0, YMax: 120, fluctuation: 1.2,
		value: func(d monitor.Dashboard) float64 { return float64(d.ActiveMinutes) }},
	{Name: "distance", Title: "Distance", Unit: "km", Color: "#8b5cf6", YMin: 0, YMax: 10, fluctuation: 0.8,
		value: func(d monitor.Dashboard) float64 { return d.DistanceKm }},
	{Name: "stress", Title: "Stress", Unit: "/100", Color: "#a855f7", YMin: 0, YMax: 100, fluctuation: 0.3,
		value: func(d monitor.Dashboard) float64 { return float64(d.StressLevel) }},
}

// Specs lists the metrics that have a day series.
func Specs() []Spec {
	return append([]Spec(nil), specs...)
}

// LookupSpec finds the spec for name.
func LookupSpec(name string) (Spec, error) {
	for _, s := range specs {
		if s.Name == name {
			return s, nil
		}
	}
	return Spec{}, ErrUnknownMetric
}

// Metric draws the day series for name around the dashboard's current
// value. The steps axis scales with the daily goal.
func (g *Generator) Metric(name string, d monitor.Dashboard) (Points, Spec, error) {
	spec, err := LookupSpec(name)
	if err != nil {
		return nil, Spec{}, err
	}
	if name == "heart-rate" {
		return g.HeartRate(float64(d.HeartRate), float64(d.HeartRateMin), float64(d.HeartRateMax)), spec, nil
	}
	if name == "steps" {
		spec.YMax = float64(d.StepsGoal) * 1.5
	}
	return g.Generic(spec.value(d), spec.fluctuation), spec, nil
}
