package httpapi

import (
	"bytes"
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"healthguard/internal/monitor"
	"healthguard/internal/scoring"
)

// counters tracks monitor changes for the exposition.
type counters struct {
	mu          sync.Mutex
	updates     map[string]uint64
	escalations uint64
}

func newCounters() *counters {
	return &counters{updates: make(map[string]uint64)}
}

func (c *counters) observe(ch monitor.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates[sourceLabel(ch.Source)]++
	if ch.Escalated() {
		c.escalations++
	}
}

// sourceLabel folds per-device sources such as "mqtt:watch-1" into "mqtt"
// to keep label cardinality bounded.
func sourceLabel(source string) string {
	for i, r := range source {
		if r == ':' {
			return source[:i]
		}
	}
	return source
}

func gauge(name, help string, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{Name: proto.String(name), Help: proto.String(help), Type: dto.MetricType_GAUGE.Enum(), Metric: metrics}
}

func gaugeValue(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{Name: proto.String(labels[i]), Value: proto.String(labels[i+1])})
	}
	return m
}

func counterValue(v float64, labels ...string) *dto.Metric {
	m := gaugeValue(v, labels...)
	m.Counter, m.Gauge = &dto.Counter{Value: proto.Float64(v)}, nil
	return m
}

func (s *Server) families() []*dto.MetricFamily {
	d, at := s.deps.Monitor.Current()

	risk := make([]*dto.Metric, 0, 3)
	for _, st := range []scoring.RiskStatus{scoring.RiskLow, scoring.RiskMedium, scoring.RiskHigh} {
		v := 0.0
		if d.RiskStatus == st {
			v = 1
		}
		risk = append(risk, gaugeValue(v, "status", string(st)))
	}

	radar := make([]*dto.Metric, 0, len(d.Radar))
	for _, p := range d.Radar {
		radar = append(radar, gaugeValue(p.Value, "axis", string(p.Axis)))
	}

	s.counters.mu.Lock()
	sources := make([]string, 0, len(s.counters.updates))
	for src := range s.counters.updates {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	updates := make([]*dto.Metric, 0, len(sources))
	for _, src := range sources {
		updates = append(updates, counterValue(float64(s.counters.updates[src]), "source", src))
	}
	escalations := float64(s.counters.escalations)
	s.counters.mu.Unlock()

	families := []*dto.MetricFamily{
		gauge("healthguard_score", "Current health score (0-100).", gaugeValue(float64(d.Score))),
		gauge("healthguard_risk_status", "1 for the current risk status, 0 otherwise.", risk...),
		gauge("healthguard_heart_rate_bpm", "Current heart rate.", gaugeValue(float64(d.HeartRate))),
		gauge("healthguard_blood_oxygen_percent", "Current blood oxygen saturation.", gaugeValue(float64(d.BloodOxygen))),
		gauge("healthguard_stress_level", "Current stress level (0-100).", gaugeValue(float64(d.StressLevel))),
		gauge("healthguard_steps", "Steps counted today.", gaugeValue(float64(d.StepCount))),
		gauge("healthguard_sleep_hours", "Sleep last night.", gaugeValue(d.SleepHours)),
		gauge("healthguard_radar_value", "Radar profile axis value.", radar...),
		gauge("healthguard_snapshot_timestamp_seconds", "Unix time of the last rescoring.", gaugeValue(float64(at.UnixNano())/1e9)),
		{
			Name:   proto.String("healthguard_escalations_total"),
			Help:   proto.String("Risk status escalations observed."),
			Type:   dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{counterValue(escalations)},
		},
	}
	if len(updates) > 0 {
		families = append(families, &dto.MetricFamily{
			Name:   proto.String("healthguard_updates_total"),
			Help:   proto.String("Applied snapshot updates by source."),
			Type:   dto.MetricType_COUNTER.Enum(),
			Metric: updates,
		})
	}
	if s.deps.Hub != nil {
		families = append(families, gauge("healthguard_stream_clients", "Connected websocket clients.", gaugeValue(float64(s.deps.Hub.Count()))))
	}
	if s.deps.Sessions != nil {
		families = append(families, gauge("healthguard_coach_sessions", "Live coach sessions.", gaugeValue(float64(s.deps.Sessions.Len()))))
	}
	return families
}

func (s *Server) metrics(c *gin.Context) {
	var buf bytes.Buffer
	for _, mf := range s.families() {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.Data(http.StatusOK, string(expfmt.NewFormat(expfmt.TypeTextPlain)), buf.Bytes())
}
