package monitor

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"healthguard/internal/scoring"
)

func newMonitor(t *testing.T) *Monitor {
	t.Helper()
	engine, err := scoring.New("en")
	if err != nil {
		t.Fatalf("scoring.New: %v", err)
	}
	return New(engine, Seed(), zerolog.Nop())
}

func TestNewScoresSeed(t *testing.T) {
	m := newMonitor(t)
	cur, at := m.Current()

	if at.IsZero() {
		t.Fatal("updatedAt should be set")
	}
	if cur.Score != 75 {
		t.Fatalf("seed score = %d, want 75", cur.Score)
	}
	if cur.RiskStatus != scoring.RiskLow {
		t.Fatalf("seed status = %q, want low", cur.RiskStatus)
	}
	if cur.Radar.Value(scoring.AxisRespiration) != 0.95 {
		t.Fatalf("respiration should keep its seed value")
	}
	if cur.BloodPressure != "118/78" || cur.StepsGoal != 10000 {
		t.Fatalf("card fields lost: %+v", cur)
	}
}

func TestApplyMergesAndRescores(t *testing.T) {
	m := newMonitor(t)

	change, err := m.Apply("test", Patch{BloodOxygen: Int(88), Temperature: Float(37.4)})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !change.Escalated() {
		t.Fatal("low -> high should count as escalation")
	}
	if !change.StatusChanged() {
		t.Fatal("status should have changed")
	}
	cur := change.Current
	if cur.BloodOxygen != 88 || cur.HeartRate != 68 || cur.Temperature != 37.4 {
		t.Fatalf("merge wrong: %+v", cur.Metrics)
	}
	if cur.RiskStatus != scoring.RiskHigh || !strings.Contains(cur.StatusMessage, "88%") {
		t.Fatalf("unexpected headline %q / %q", cur.RiskStatus, cur.StatusMessage)
	}

	latest, _ := m.Current()
	if latest != cur {
		t.Fatal("Current should return the applied dashboard")
	}
}

func TestApplyRejectsInvalidPatch(t *testing.T) {
	m := newMonitor(t)
	before, _ := m.Current()

	_, err := m.Apply("test", Patch{StepCount: Int(-5), StressLevel: Int(140)})
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("want ErrInvalidPatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "step_count") || !strings.Contains(err.Error(), "stress_level") {
		t.Fatalf("error should list both fields: %v", err)
	}

	after, _ := m.Current()
	if before != after {
		t.Fatal("rejected patch must not change state")
	}
}

func TestListenersAndReset(t *testing.T) {
	m := newMonitor(t)

	var got []Change
	m.Subscribe(func(c Change) { got = append(got, c) })

	if _, err := m.Apply("sim", Patch{StressLevel: Int(90)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	reset := m.Reset("api")

	if len(got) != 2 {
		t.Fatalf("listener calls = %d, want 2", len(got))
	}
	if got[0].Source != "sim" || got[0].Current.RiskStatus != scoring.RiskHigh {
		t.Fatalf("first change = %+v", got[0])
	}
	if reset.Current.StressLevel != 35 || reset.Current.RiskStatus != scoring.RiskLow {
		t.Fatalf("reset should restore seed, got %+v", reset.Current.Metrics)
	}
	if reset.Escalated() {
		t.Fatal("high -> low is not an escalation")
	}
}

func TestConcurrentApply(t *testing.T) {
	m := newMonitor(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = m.Apply("worker", Patch{StepCount: Int(i * 100), HeartRate: Int(60 + i%40)})
		}(i)
	}
	wg.Wait()

	cur, _ := m.Current()
	want := m.Engine().Evaluate(cur.Snapshot)
	if cur.Snapshot != want {
		t.Fatalf("final state is not consistently scored: %+v vs %+v", cur.Snapshot, want)
	}
}

func TestListenersSeeCommitOrder(t *testing.T) {
	m := newMonitor(t)

	var (
		mu    sync.Mutex
		calls int
		last  int
	)
	m.Subscribe(func(c Change) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			time.Sleep(100 * time.Millisecond)
		}
		mu.Lock()
		last = c.Current.HeartRate
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Apply("slow", Patch{HeartRate: Int(90)})
	}()
	time.Sleep(20 * time.Millisecond)
	if _, err := m.Apply("fast", Patch{HeartRate: Int(70)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	<-done

	cur, _ := m.Current()
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("listener calls = %d, want 2", calls)
	}
	if last != cur.HeartRate {
		t.Fatalf("last delivered heart rate %d, current %d", last, cur.HeartRate)
	}
}

func TestPatchValidate(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		ok    bool
	}{
		{"empty", Patch{}, true},
		{"nominal", Patch{HeartRate: Int(72), SleepHours: Float(6.5), BloodPressure: String("120/80")}, true},
		{"zero heart rate", Patch{HeartRate: Int(0)}, false},
		{"sleep over a day", Patch{SleepHours: Float(25)}, false},
		{"spo2 above 100", Patch{BloodOxygen: Int(101)}, false},
		{"min above max", Patch{HeartRateMin: Int(150), HeartRateMax: Int(140)}, false},
		{"bad blood pressure", Patch{BloodPressure: String("high")}, false},
		{"zero goal", Patch{StepsGoal: Int(0)}, false},
		{"negative calories", Patch{Calories: Int(-1)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.patch.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestDashboardHelpers(t *testing.T) {
	d := Seed()
	if d.StressBand() != scoring.BandLow {
		t.Fatalf("seed stress band = %q", d.StressBand())
	}
	if p := d.StepsProgress(); p < 84.3 || p > 84.33 {
		t.Fatalf("StepsProgress = %.3f", p)
	}
	d.StepsGoal = 0
	if d.StepsProgress() != 0 {
		t.Fatal("zero goal should give zero progress")
	}
	if !(Patch{}).Empty() || (Patch{HeartRate: Int(1)}).Empty() {
		t.Fatal("Empty misreports")
	}
}
