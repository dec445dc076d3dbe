package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"healthguard/internal/monitor"
	"healthguard/internal/scoring"
)

// Show prints the scored dashboard.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	mon, err := a.loadMonitor()
	if err != nil {
		return err
	}

	d, at := mon.Current()
	if opts.JSON {
		return a.writeJSON(d)
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Score\t%d/100 (%s)\n", d.Score, d.ScoreChange)
	fmt.Fprintf(writer, "Risk\t%s\n", d.RiskStatus)
	fmt.Fprintf(writer, "Status\t%s\n", sanitizeInline(d.StatusMessage))
	fmt.Fprintf(writer, "Heart rate\t%d BPM (%d-%d)\n", d.HeartRate, d.HeartRateMin, d.HeartRateMax)
	fmt.Fprintf(writer, "Blood pressure\t%s mmHg\n", d.BloodPressure)
	fmt.Fprintf(writer, "SpO2\t%d%%\n", d.BloodOxygen)
	fmt.Fprintf(writer, "Temperature\t%s °C\n", formatFloat(d.Temperature, 1))
	fmt.Fprintf(writer, "Stress\t%d/100 (%s)\n", d.StressLevel, d.StressBand())
	fmt.Fprintf(writer, "Steps\t%d / %d (%s%%)\n", d.StepCount, d.StepsGoal, formatFloat(d.StepsProgress(), 1))
	fmt.Fprintf(writer, "Calories\t%d kcal\n", d.Calories)
	fmt.Fprintf(writer, "Active\t%d min, %s km\n", d.ActiveMinutes, formatFloat(d.DistanceKm, 1))
	fmt.Fprintf(writer, "Sleep\t%sh (quality %d)\n", formatFloat(d.SleepHours, 1), d.SleepQuality)
	for _, p := range d.Radar {
		fmt.Fprintf(writer, "  %s\t%s\n", p.Label, formatFloat(p.Value*100, 0))
	}
	fmt.Fprintf(writer, "Updated\t%s\n", at.Format("2006-01-02 15:04:05 MST"))
	return writer.Flush()
}

// Score evaluates one set of metrics without any running state.
func (a *App) Score(ctx context.Context, opts ScoreOptions) error {
	engine, err := a.newEngine(opts.Locale)
	if err != nil {
		return err
	}

	seed := monitor.Seed()
	seed.Metrics = opts.Metrics
	snap := engine.Evaluate(seed.Snapshot)

	var hits []scoring.Hit
	if opts.Explain {
		hits = engine.Explain(opts.Metrics)
	}

	if opts.JSON {
		return a.writeJSON(struct {
			scoring.Snapshot
			Hits []scoring.Hit `json:"hits,omitempty"`
		}{snap, hits})
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Score\t%d/100\n", snap.Score)
	fmt.Fprintf(writer, "Risk\t%s\n", snap.RiskStatus)
	fmt.Fprintf(writer, "Status\t%s\n", sanitizeInline(snap.StatusMessage))
	if opts.Explain {
		fmt.Fprintln(writer, "\nRule\tDelta\tHeadline")
		for _, h := range hits {
			fmt.Fprintf(writer, "%s\t%+d\t%s\n", h.Rule, h.Delta, h.Status)
		}
	}
	return writer.Flush()
}

func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
