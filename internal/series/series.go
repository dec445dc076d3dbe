// Package series produces the illustrative 24-hour series the dashboard
// charts draw next to the live values. Nothing here feeds the score.
package series

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Hours is the number of hourly points in a day series.
const Hours = 24

// DefaultFluctuation is the relative spread used by Generic when none is given.
const DefaultFluctuation = 0.1

// Point is one hourly sample.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Points is an hourly series.
type Points []Point

// Values returns the sample values in order.
func (p Points) Values() []float64 {
	out := make([]float64, len(p))
	for i, pt := range p {
		out[i] = pt.Value
	}
	return out
}

// Times returns the sample timestamps in order.
func (p Points) Times() []time.Time {
	out := make([]time.Time, len(p))
	for i, pt := range p {
		out[i] = pt.Time
	}
	return out
}

// Stage is one slice of the sleep breakdown.
type Stage struct {
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
	Color string  `json:"color"`
}

// Generator draws noise from a private source so tests can fix the seed.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// New returns a Generator seeded with seed.
func New(seed uint64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
}

// NewRandom returns a Generator seeded from the runtime source.
func NewRandom() *Generator {
	return New(rand.Uint64())
}

// HeartRate simulates a daily rhythm around average: lower at night, higher
// during the day, with ±5 BPM noise, clamped to [lo, hi] and rounded.
func (g *Generator) HeartRate(average, lo, hi float64) Points {
	day := g.midnight()
	out := make(Points, Hours)
	for h := 0; h < Hours; h++ {
		rhythm := math.Sin(float64(h-6)*math.Pi/12) * ((hi - lo) / 4)
		v := average + rhythm + (g.float()-0.5)*10
		v = math.Max(lo, math.Min(hi, v))
		out[h] = Point{Time: day.Add(time.Duration(h) * time.Hour), Value: math.Round(v)}
	}
	return out
}

// Generic scatters current by ±fluctuation/2 around its value for every hour.
// A non-positive fluctuation uses DefaultFluctuation.
func (g *Generator) Generic(current, fluctuation float64) Points {
	if fluctuation <= 0 {
		fluctuation = DefaultFluctuation
	}
	day := g.midnight()
	out := make(Points, Hours)
	for h := 0; h < Hours; h++ {
		v := current * (1 + (g.float()-0.5)*fluctuation)
		out[h] = Point{Time: day.Add(time.Duration(h) * time.Hour), Value: v}
	}
	return out
}

// SleepStages splits total sleep into deep, REM and light phases.
func SleepStages(total float64) []Stage {
	return []Stage{
		{Name: "deep", Hours: total * 0.20, Color: "#1e3a8a"},
		{Name: "rem", Hours: total * 0.25, Color: "#3b82f6"},
		{Name: "light", Hours: total * 0.55, Color: "#93c5fd"},
	}
}

func (g *Generator) float() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

func (g *Generator) midnight() time.Time {
	now := g.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
