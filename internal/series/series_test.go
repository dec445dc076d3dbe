package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"healthguard/internal/monitor"
)

func fixed(g *Generator) *Generator {
	g.now = func() time.Time { return time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC) }
	return g
}

func TestHeartRate(t *testing.T) {
	g := fixed(New(42))
	pts := g.HeartRate(68, 58, 145)

	if len(pts) != Hours {
		t.Fatalf("len = %d, want %d", len(pts), Hours)
	}
	for i, p := range pts {
		if p.Value < 58 || p.Value > 145 {
			t.Errorf("hour %d value %.1f outside [58,145]", i, p.Value)
		}
		if p.Value != math.Round(p.Value) {
			t.Errorf("hour %d value %.3f not rounded", i, p.Value)
		}
		if p.Time.Hour() != i || p.Time.Day() != 14 {
			t.Errorf("hour %d has timestamp %s", i, p.Time)
		}
	}

	// Afternoon peak (sin at hour 12 is 1) sits well above the early-morning trough.
	if pts[12].Value <= pts[0].Value {
		t.Errorf("expected daytime rhythm: 12h=%.0f 0h=%.0f", pts[12].Value, pts[0].Value)
	}
}

func TestHeartRateDeterministic(t *testing.T) {
	a := fixed(New(7)).HeartRate(70, 50, 150)
	b := fixed(New(7)).HeartRate(70, 50, 150)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different series at %d", i)
		}
	}
}

func TestGeneric(t *testing.T) {
	g := fixed(New(1))
	pts := g.Generic(100, 0.2)
	for i, v := range pts.Values() {
		if v < 90 || v > 110 {
			t.Errorf("hour %d value %.2f outside ±10%%", i, v)
		}
	}

	pts = g.Generic(1000, 0)
	for i, v := range pts.Values() {
		if v < 950 || v > 1050 {
			t.Errorf("default fluctuation: hour %d value %.2f outside ±5%%", i, v)
		}
	}
	if len(pts.Times()) != Hours {
		t.Fatalf("Times len = %d", len(pts.Times()))
	}
}

func TestSleepStages(t *testing.T) {
	stages := SleepStages(8)
	var total float64
	for _, s := range stages {
		total += s.Hours
	}
	if math.Abs(total-8) > 1e-9 {
		t.Fatalf("stages sum to %.3f, want 8", total)
	}
	if stages[0].Name != "deep" || math.Abs(stages[0].Hours-1.6) > 1e-9 {
		t.Fatalf("deep stage = %+v", stages[0])
	}
}

func TestMetric(t *testing.T) {
	g := fixed(New(5))
	d := monitor.Seed()

	for _, spec := range Specs() {
		pts, got, err := g.Metric(spec.Name, d)
		if err != nil {
			t.Fatalf("%s: %v", spec.Name, err)
		}
		if len(pts) != Hours || got.Name != spec.Name {
			t.Fatalf("%s: %d points, spec %q", spec.Name, len(pts), got.Name)
		}
	}

	pts, spec, _ := g.Metric("steps", d)
	if spec.YMax != 15000 {
		t.Fatalf("steps y max = %.0f, want 1.5x goal", spec.YMax)
	}
	for _, v := range pts.Values() {
		if v < 8432*0.6 || v > 8432*1.4 {
			t.Fatalf("steps value %.0f outside ±40%%", v)
		}
	}

	if _, _, err := g.Metric("mood", d); !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("want ErrUnknownMetric, got %v", err)
	}
}
