package scoring

import "math"

// radarFloor keeps every recomputed spoke visible on the chart.
const radarFloor = 0.1

// Engine evaluates the rule cascade with the texts of one locale.
type Engine struct {
	locale  string
	catalog Catalog
}

// New returns an Engine for locale.
func New(locale string) (*Engine, error) {
	c, err := LookupCatalog(locale)
	if err != nil {
		return nil, err
	}
	return &Engine{locale: locale, catalog: c}, nil
}

var defaultEngine = &Engine{locale: DefaultLocale, catalog: catalogs[DefaultLocale]}

// Evaluate scores in with the default locale.
func Evaluate(in Snapshot) Snapshot {
	return defaultEngine.Evaluate(in)
}

// Locale returns the locale the engine renders texts in.
func (e *Engine) Locale() string {
	return e.locale
}

// Catalog returns the engine's message catalog.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// Evaluate returns a copy of in with Score, RiskStatus, StatusMessage and
// Radar recomputed from the raw metrics. Only the respiration spoke is taken
// from in.Radar; it has no formula and passes through unchanged.
func (e *Engine) Evaluate(in Snapshot) Snapshot {
	v := run(e.catalog, in.Metrics)

	out := Snapshot{
		Metrics:       in.Metrics,
		Score:         v.score,
		RiskStatus:    v.status,
		StatusMessage: v.message,
	}
	out.Radar = e.radar(in.Metrics, respiration(in.Radar))
	return out
}

// respiration reads the spoke by axis. Profiles without axis labels, such
// as hand-written overrides, fall back to the display position.
func respiration(p RadarProfile) float64 {
	if v, ok := p.Lookup(AxisRespiration); ok {
		return v
	}
	return p[idxRespiration].Value
}

// Explain lists the branches that match m, in evaluation order.
func (e *Engine) Explain(m Metrics) []Hit {
	return run(e.catalog, m).hits
}

func (e *Engine) radar(m Metrics, respiration float64) RadarProfile {
	var values [5]float64

	cardioPenalty := 0.0
	if m.HeartRate > 70 {
		cardioPenalty = float64(m.HeartRate-70) * 2
	}
	values[idxCardio] = floor((100 - cardioPenalty) / 100)
	values[idxRespiration] = respiration
	values[idxSleep] = floor(m.SleepHours / 8.0)
	values[idxActivity] = floor(float64(m.StepCount) / 10000.0)
	values[idxStress] = floor(float64(100-m.StressLevel) / 100)

	var p RadarProfile
	for i, a := range Axes {
		p[i] = RadarPoint{Axis: a, Label: e.catalog.Label(a), Value: values[i]}
	}
	return p
}

func floor(v float64) float64 {
	return math.Max(radarFloor, v)
}

// Band is the coarse stress classification shown on the dashboard card.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// StressBand classifies a stress level for display. It is independent of
// the cascade thresholds.
func StressBand(level int) Band {
	switch {
	case level > 70:
		return BandHigh
	case level > 40:
		return BandMedium
	default:
		return BandLow
	}
}
