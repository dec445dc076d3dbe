package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"healthguard/internal/alerting"
	"healthguard/internal/config"
	"healthguard/internal/monitor"
	"healthguard/internal/report"
	"healthguard/internal/scoring"
	"healthguard/internal/simulator"
)

type captureNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n alerting.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notes)
}

func newService(t *testing.T, device *simulator.Device) (*Service, *monitor.Monitor, *captureNotifier, *report.Window) {
	t.Helper()
	engine, err := scoring.New("en")
	if err != nil {
		t.Fatalf("scoring.New: %v", err)
	}
	mon := monitor.New(engine, monitor.Seed(), zerolog.Nop())
	cfg := &config.Config{Alerting: config.AlertingConfig{Enabled: true, Cooldown: time.Hour, Channels: []string{"telegram"}}}
	notifier := &captureNotifier{}
	window := report.NewWindow(time.Hour)
	return New(cfg, nil, mon, device, notifier, window, zerolog.Nop()), mon, notifier, window
}

func TestTickAppliesDevicePatch(t *testing.T) {
	device := simulator.NewDevice(monitor.Seed(), simulator.Options{Seed: 5})
	svc, mon, _, _ := newService(t, device)

	before, _ := mon.Current()
	if err := svc.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	after, _ := mon.Current()
	if after.StepCount < before.StepCount {
		t.Fatalf("steps went backwards: %d -> %d", before.StepCount, after.StepCount)
	}

	noDevice, _, _, _ := newService(t, nil)
	if err := noDevice.Tick(context.Background(), time.Now()); err == nil {
		t.Fatal("Tick without device should fail")
	}
}

func TestTickRespectsManualEdits(t *testing.T) {
	device := simulator.NewDevice(monitor.Seed(), simulator.Options{Seed: 5})
	svc, mon, _, _ := newService(t, device)
	svc.hold = time.Minute

	if _, err := mon.Apply("api", monitor.Patch{SleepHours: monitor.Float(5), BloodOxygen: monitor.Int(85), StepCount: monitor.Int(15000)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	now := time.Now()
	if err := svc.Tick(context.Background(), now); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	held, _ := mon.Current()
	if held.BloodOxygen != 85 || held.SleepHours != 5 || held.StepCount != 15000 {
		t.Fatalf("tick inside the hold overwrote the edit: spo2 %d sleep %.1f steps %d", held.BloodOxygen, held.SleepHours, held.StepCount)
	}

	if err := svc.Tick(context.Background(), now.Add(2*time.Minute)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	after, _ := mon.Current()
	if after.SleepHours != 5 {
		t.Fatalf("sleep reverted to %.1f after the hold", after.SleepHours)
	}
	if after.StepCount < 15000 {
		t.Fatalf("steps restarted from the old walk: %d", after.StepCount)
	}
}

func TestTickWithoutHoldContinuesFromEdit(t *testing.T) {
	device := simulator.NewDevice(monitor.Seed(), simulator.Options{Seed: 5})
	svc, mon, _, _ := newService(t, device)

	if _, err := mon.Apply("mqtt:watch-1", monitor.Patch{SleepHours: monitor.Float(5)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := svc.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	cur, _ := mon.Current()
	if cur.SleepHours != 5 {
		t.Fatalf("sleep = %.1f, want the edited 5", cur.SleepHours)
	}
}

func TestHandleChangeAlertsWithCooldown(t *testing.T) {
	svc, _, notifier, window := newService(t, nil)
	base := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

	change := func(from, to scoring.RiskStatus, at time.Time) monitor.Change {
		prev, cur := monitor.Seed(), monitor.Seed()
		prev.RiskStatus, cur.RiskStatus = from, to
		return monitor.Change{Previous: prev, Current: cur, Source: "test", AppliedAt: at}
	}

	svc.HandleChange(context.Background(), change(scoring.RiskLow, scoring.RiskMedium, base))
	if notifier.count() != 1 {
		t.Fatalf("first escalation should alert, got %d", notifier.count())
	}

	// Same tier again inside the cooldown is suppressed.
	svc.HandleChange(context.Background(), change(scoring.RiskLow, scoring.RiskMedium, base.Add(time.Minute)))
	if notifier.count() != 1 {
		t.Fatalf("cooldown ignored, got %d", notifier.count())
	}

	// A higher tier breaks through the cooldown.
	svc.HandleChange(context.Background(), change(scoring.RiskMedium, scoring.RiskHigh, base.Add(2*time.Minute)))
	if notifier.count() != 2 {
		t.Fatalf("escalation to high should alert, got %d", notifier.count())
	}

	// De-escalation never alerts.
	svc.HandleChange(context.Background(), change(scoring.RiskHigh, scoring.RiskLow, base.Add(3*time.Hour)))
	if notifier.count() != 2 {
		t.Fatalf("de-escalation alerted")
	}

	// After the cooldown the same tier alerts again.
	svc.HandleChange(context.Background(), change(scoring.RiskLow, scoring.RiskHigh, base.Add(4*time.Hour)))
	if notifier.count() != 3 {
		t.Fatalf("post-cooldown escalation should alert, got %d", notifier.count())
	}

	if avg, ok := window.Average(base.Add(4 * time.Hour)); !ok || avg.Samples != 2 {
		t.Fatalf("window should hold the samples from +3h and +4h only: %+v %v", avg, ok)
	}
}

func TestRunDispatchesMonitorChanges(t *testing.T) {
	svc, mon, notifier, _ := newService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	if _, err := mon.Apply("api", monitor.Patch{BloodOxygen: monitor.Int(88)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for notifier.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("alert was not dispatched")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	notifier.mu.Lock()
	note := notifier.notes[0]
	notifier.mu.Unlock()
	if note.Status != scoring.RiskHigh || note.Source != "api" || note.Channels[0] != "telegram" {
		t.Fatalf("note = %+v", note)
	}
}
