// Package report averages dashboard samples over a rolling window and renders
// the weekly report and share texts.
package report

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"healthguard/internal/monitor"
)

// DefaultWindow is the span a weekly report covers.
const DefaultWindow = 7 * 24 * time.Hour

// Weekly holds the averaged values a report quotes.
type Weekly struct {
	Score      int             `json:"score"`
	Steps      int             `json:"steps"`
	SleepHours decimal.Decimal `json:"sleep_hours"`
	Samples    int             `json:"samples"`
}

// FromDashboard turns a single dashboard into a one-sample report.
func FromDashboard(d monitor.Dashboard) Weekly {
	return Weekly{
		Score:      d.Score,
		Steps:      d.StepCount,
		SleepHours: decimal.NewFromFloat(d.SleepHours).Round(1),
		Samples:    1,
	}
}

type sample struct {
	at    time.Time
	score int
	steps int
	sleep decimal.Decimal
}

// Window keeps samples no older than span. It is safe for concurrent use.
type Window struct {
	span time.Duration

	mu      sync.Mutex
	samples []sample
}

// NewWindow returns a Window covering span, DefaultWindow when span <= 0.
func NewWindow(span time.Duration) *Window {
	if span <= 0 {
		span = DefaultWindow
	}
	return &Window{span: span}
}

// Record adds d as observed at at.
func (w *Window) Record(at time.Time, d monitor.Dashboard) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, sample{
		at:    at,
		score: d.Score,
		steps: d.StepCount,
		sleep: decimal.NewFromFloat(d.SleepHours),
	})
	w.prune(at)
}

// Average returns the mean of samples in the window ending at now. ok is
// false when the window is empty.
func (w *Window) Average(now time.Time) (Weekly, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now)
	if len(w.samples) == 0 {
		return Weekly{}, false
	}

	var score, steps, sleep decimal.Decimal
	for _, s := range w.samples {
		score = score.Add(decimal.NewFromInt(int64(s.score)))
		steps = steps.Add(decimal.NewFromInt(int64(s.steps)))
		sleep = sleep.Add(s.sleep)
	}
	n := decimal.NewFromInt(int64(len(w.samples)))
	return Weekly{
		Score:      int(score.Div(n).Round(0).IntPart()),
		Steps:      int(steps.Div(n).Round(0).IntPart()),
		SleepHours: sleep.Div(n).Round(1),
		Samples:    len(w.samples),
	}, true
}

func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.samples) && w.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}

// GroupDigits formats n with sep between every three digits.
func GroupDigits(n int, sep string) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var sb strings.Builder
	sb.WriteString(sign)
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteString(sep)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type texts struct {
	title, missing, averages, steps, sleep, sep string
}

var catalog = map[string]texts{
	"en": {"Weekly health report:", "Summary not generated.", "Averages:", "Steps", "Sleep", ","},
	"de": {"Wöchentlicher Gesundheitsbericht:", "Zusammenfassung nicht generiert.", "Durchschnittswerte:", "Schritte", "Schlaf", "."},
}

func lookup(locale string) texts {
	if t, ok := catalog[locale]; ok {
		return t
	}
	return catalog["en"]
}

// StepsText formats the step count with the locale's digit grouping.
func (w Weekly) StepsText(locale string) string {
	return GroupDigits(w.Steps, lookup(locale).sep)
}

// ShareText renders the copyable report. An empty summary is replaced by
// the locale's placeholder.
func ShareText(locale string, w Weekly, summary string) string {
	t := lookup(locale)
	if strings.TrimSpace(summary) == "" {
		summary = t.missing
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n- Score: %d/100\n- %s: %s\n- %s: %sh",
		t.title, summary, t.averages, w.Score, t.steps, w.StepsText(locale), t.sleep, w.SleepHours.String())
}
