// Package simulator stands in for the paired watch: every call to Next
// produces the patch a real device sync would deliver.
package simulator

import (
	"math"
	"math/rand/v2"
	"sync"

	"healthguard/internal/monitor"
)

// Anomaly names an injected out-of-range reading.
type Anomaly string

const (
	AnomalyNone         Anomaly = ""
	AnomalyStressSpike  Anomaly = "stress_spike"
	AnomalyOxygenDip    Anomaly = "oxygen_dip"
	AnomalyHeartRateHi  Anomaly = "heart_rate_spike"
	AnomalySleepDeficit Anomaly = "sleep_deficit"
)

var anomalies = []Anomaly{AnomalyStressSpike, AnomalyOxygenDip, AnomalyHeartRateHi, AnomalySleepDeficit}

// Options tune the random walk.
type Options struct {
	Seed         uint64
	AnomalyRate  float64
	StepsPerTick int
}

// Device is a bounded random walk over the raw metrics. It is safe for
// concurrent use.
type Device struct {
	opts Options

	mu       sync.Mutex
	rng      *rand.Rand
	hr       float64
	stress   float64
	spo2     float64
	steps    int
	sleep    float64
	calories float64
	distance float64
	active   int
}

// NewDevice starts the walk from d. A zero seed draws one at random.
func NewDevice(d monitor.Dashboard, opts Options) *Device {
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if opts.StepsPerTick <= 0 {
		opts.StepsPerTick = 120
	}
	dev := &Device{
		opts: opts,
		rng:  rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	dev.reset(d)
	return dev
}

// Rebase restarts the walk from d, keeping the random stream. Call it when
// the dashboard was edited by something other than the device.
func (d *Device) Rebase(dash monitor.Dashboard) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset(dash)
}

func (d *Device) reset(dash monitor.Dashboard) {
	d.hr = float64(dash.HeartRate)
	d.stress = float64(dash.StressLevel)
	d.spo2 = float64(dash.BloodOxygen)
	d.steps = dash.StepCount
	d.sleep = dash.SleepHours
	d.calories = float64(dash.Calories)
	d.distance = dash.DistanceKm
	d.active = dash.ActiveMinutes
}

// Next advances the walk one tick and returns the readings as a patch.
func (d *Device) Next() (monitor.Patch, Anomaly) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hr = clamp(d.hr+d.jitter(3)+(68-d.hr)*0.1, 50, 100)
	d.stress = clamp(d.stress+d.jitter(4)+(35-d.stress)*0.05, 5, 75)
	d.spo2 = clamp(d.spo2+d.jitter(1)+(98-d.spo2)*0.2, 93, 100)

	walked := d.rng.IntN(d.opts.StepsPerTick + 1)
	d.steps += walked
	d.calories += float64(walked) * 0.04
	d.distance += float64(walked) * 0.00075
	if walked > d.opts.StepsPerTick/2 {
		d.active++
	}

	hr, stress, spo2, sleep := round(d.hr), round(d.stress), round(d.spo2), d.sleep

	anomaly := AnomalyNone
	if d.opts.AnomalyRate > 0 && d.rng.Float64() < d.opts.AnomalyRate {
		anomaly = anomalies[d.rng.IntN(len(anomalies))]
		switch anomaly {
		case AnomalyStressSpike:
			stress = 82 + d.rng.IntN(15)
		case AnomalyOxygenDip:
			spo2 = 86 + d.rng.IntN(5)
		case AnomalyHeartRateHi:
			hr = 92 + d.rng.IntN(30)
		case AnomalySleepDeficit:
			sleep = 4 + float64(d.rng.IntN(20))/10
		}
	}

	return monitor.Patch{
		HeartRate:     monitor.Int(hr),
		StressLevel:   monitor.Int(stress),
		StepCount:     monitor.Int(d.steps),
		SleepHours:    monitor.Float(sleep),
		BloodOxygen:   monitor.Int(spo2),
		Calories:      monitor.Int(round(d.calories)),
		DistanceKm:    monitor.Float(math.Round(d.distance*10) / 10),
		ActiveMinutes: monitor.Int(d.active),
	}, anomaly
}

// jitter is uniform in [-spread, spread].
func (d *Device) jitter(spread float64) float64 {
	return (d.rng.Float64()*2 - 1) * spread
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64) int {
	return int(math.Round(v))
}
