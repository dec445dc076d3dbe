package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"healthguard/internal/alerting"
	"healthguard/internal/config"
	"healthguard/internal/genai"
	"healthguard/internal/monitor"
	"healthguard/internal/scoring"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		Scoring:  config.ScoringConfig{Locale: "en"},
		Coach:    config.CoachConfig{MaxHistory: 10},
		Alerting: config.AlertingConfig{Timeout: time.Second},
		Export:   config.ExportConfig{Dir: t.TempDir(), ChartWidth: 640, ChartHeight: 320},
	}
	var out bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &out
	return a, &out
}

func TestShow(t *testing.T) {
	a, out := newTestApp(t)

	if err := a.Show(context.Background(), ShowOptions{}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	for _, want := range []string{"75/100", "low", "68 BPM (58-145)", "Cardiovascular"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestShowAppliesOverrides(t *testing.T) {
	a, out := newTestApp(t)
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	if err := os.WriteFile(path, []byte("blood_oxygen: 88\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a.Config.Overrides = config.OverridesConfig{Enabled: true, Path: path}

	if err := a.Show(context.Background(), ShowOptions{JSON: true}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	var d monitor.Dashboard
	if err := json.Unmarshal(out.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.BloodOxygen != 88 || d.RiskStatus != scoring.RiskHigh {
		t.Fatalf("dashboard = %+v", d.Snapshot)
	}
}

func TestScore(t *testing.T) {
	a, out := newTestApp(t)
	opts := ScoreOptions{
		Metrics: scoring.Metrics{HeartRate: 68, StressLevel: 85, StepCount: 12000, SleepHours: 7.5, BloodOxygen: 98},
		Explain: true,
		JSON:    true,
	}
	if err := a.Score(context.Background(), opts); err != nil {
		t.Fatalf("Score: %v", err)
	}
	var resp struct {
		scoring.Snapshot
		Hits []scoring.Hit `json:"hits"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 50 - 30 (extreme stress) + 15 (rested) + 20 (active) = 55
	if resp.Score != 55 || len(resp.Hits) != 3 {
		t.Fatalf("score = %d hits = %+v", resp.Score, resp.Hits)
	}

	if err := a.Score(context.Background(), ScoreOptions{Locale: "xx"}); err == nil {
		t.Fatal("expected unknown locale error")
	}
}

func TestExport(t *testing.T) {
	a, _ := newTestApp(t)

	if err := a.Export(context.Background(), ExportOptions{}); err == nil {
		t.Fatal("expected error without any format")
	}

	err := a.Export(context.Background(), ExportOptions{Metrics: []string{"heart-rate"}, CSV: true, PNG: true, XLSX: true, Seed: 3})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	for _, suffix := range []string{"series.csv", "heart-rate.png", "profile.png", "report.xlsx"} {
		matches, _ := filepath.Glob(filepath.Join(a.Config.Export.Dir, "healthguard-*-"+suffix))
		if len(matches) != 1 {
			t.Fatalf("%s files = %v", suffix, matches)
		}
	}
}

func TestSimulateAlert(t *testing.T) {
	bodies := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- b
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, out := newTestApp(t)
	if err := a.SimulateAlert(context.Background(), monitor.Patch{BloodOxygen: monitor.Int(88)}); err == nil {
		t.Fatal("expected error while alerting is disabled")
	}

	a.Config.Alerting.Enabled = true
	a.Config.Alerting.Webhooks = []alerting.WebhookConfig{{Type: alerting.WebhookHTTP, URL: srv.URL}}

	if err := a.SimulateAlert(context.Background(), monitor.Patch{StepCount: monitor.Int(9000)}); err == nil {
		t.Fatal("expected error for a patch that does not escalate")
	}
	if err := a.SimulateAlert(context.Background(), monitor.Patch{BloodOxygen: monitor.Int(88)}); err != nil {
		t.Fatalf("SimulateAlert: %v", err)
	}
	if len(bodies) != 1 {
		t.Fatalf("webhook hits = %d", len(bodies))
	}
	if body := <-bodies; !bytes.Contains(body, []byte(`"high"`)) {
		t.Fatalf("webhook body = %s", body)
	}
	if !strings.Contains(out.String(), "low -> high") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestCoachWithoutModel(t *testing.T) {
	a, out := newTestApp(t)

	in := strings.NewReader("\nWie schlafe ich besser?\nexit\n")
	if err := a.Coach(context.Background(), in); err != nil {
		t.Fatalf("Coach: %v", err)
	}
	if !strings.Contains(out.String(), genai.Greeting) || !strings.Contains(out.String(), genai.UnavailableText) {
		t.Fatalf("transcript = %q", out.String())
	}
}

func TestSpeakWithoutModel(t *testing.T) {
	a, _ := newTestApp(t)
	path := filepath.Join(t.TempDir(), "out.wav")

	if err := a.Speak(context.Background(), "Hallo", path); !errors.Is(err, genai.ErrMissingAPIKey) {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("no file should be written")
	}
}

func TestRunAllStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var stopped atomic.Bool
	err := runAll(context.Background(), map[string]func(context.Context) error{
		"failing": func(context.Context) error { return boom },
		"waiting": func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Store(true)
			return ctx.Err()
		},
	})
	if !errors.Is(err, boom) || !strings.HasPrefix(err.Error(), "failing:") {
		t.Fatalf("err = %v", err)
	}
	if !stopped.Load() {
		t.Fatal("sibling task was not cancelled")
	}
}
