package scoring

import "fmt"

// Thresholds and deltas of the rule cascade.
const (
	baseScore = 50

	stressExtreme  = 80
	stressElevated = 60
	sleepShort     = 6.0
	sleepRested    = 7.0
	stepsActive    = 10000
	stepsSedentary = 3000
	heartRateHigh  = 85
	bloodOxygenLow = 92
)

// effect describes how a matching branch touches the headline.
type effect int

const (
	// effectNone only adjusts the score.
	effectNone effect = iota
	// effectOverwrite replaces message and status unconditionally.
	effectOverwrite
	// effectFillEmpty sets the message only when none is set yet and
	// promotes a low status, never downgrading.
	effectFillEmpty
)

// branch is one arm of a rule. A nil when always matches.
type branch struct {
	rule   string
	when   func(Metrics) bool
	delta  int
	effect effect
	status RiskStatus
	text   func(Catalog, Metrics) string
}

// group is an if / else-if / else chain: the first matching branch wins.
type group []branch

// cascade runs top to bottom. Order decides which headline survives on
// multi-condition snapshots, so blood oxygen stays last.
var cascade = []group{
	{
		{
			rule: "stress.extreme", when: func(m Metrics) bool { return m.StressLevel > stressExtreme },
			delta: -30, effect: effectOverwrite, status: RiskHigh,
			text: func(c Catalog, _ Metrics) string { return c.ExtremeStress },
		},
		{
			rule: "stress.elevated", when: func(m Metrics) bool { return m.StressLevel > stressElevated },
			delta: -15, effect: effectOverwrite, status: RiskMedium,
			text: func(c Catalog, _ Metrics) string { return c.ElevatedStress },
		},
		{rule: "stress.calm", delta: 10},
	},
	{
		{
			rule: "sleep.short", when: func(m Metrics) bool { return m.SleepHours < sleepShort },
			delta: -15, effect: effectFillEmpty, status: RiskMedium,
			text: func(c Catalog, _ Metrics) string { return c.SleepDeprivation },
		},
		{rule: "sleep.rested", when: func(m Metrics) bool { return m.SleepHours > sleepRested }, delta: 15},
	},
	{
		{rule: "steps.active", when: func(m Metrics) bool { return m.StepCount > stepsActive }, delta: 20},
		{rule: "steps.sedentary", when: func(m Metrics) bool { return m.StepCount < stepsSedentary }, delta: -10},
	},
	{
		{
			rule: "heart_rate.elevated", when: func(m Metrics) bool { return m.HeartRate > heartRateHigh },
			delta: -20, effect: effectOverwrite, status: RiskMedium,
			text: func(c Catalog, m Metrics) string { return fmt.Sprintf(c.HeartRate, m.HeartRate) },
		},
	},
	{
		{
			rule: "blood_oxygen.low", when: func(m Metrics) bool { return m.BloodOxygen < bloodOxygenLow },
			delta: -30, effect: effectOverwrite, status: RiskHigh,
			text: func(c Catalog, m Metrics) string { return fmt.Sprintf(c.BloodOxygen, m.BloodOxygen) },
		},
	},
}

// Hit records a branch that matched during evaluation.
type Hit struct {
	Rule  string `json:"rule"`
	Delta int    `json:"delta"`

	// Status is set only for branches that touch the headline.
	Status RiskStatus `json:"status,omitempty"`
}

type verdict struct {
	score   int
	message string
	status  RiskStatus
	hits    []Hit
}

func (v *verdict) apply(b branch, c Catalog, m Metrics) {
	v.score += b.delta
	hit := Hit{Rule: b.rule, Delta: b.delta}

	switch b.effect {
	case effectOverwrite:
		v.message = b.text(c, m)
		v.status = b.status
		hit.Status = b.status
	case effectFillEmpty:
		if v.message == "" {
			v.message = b.text(c, m)
		}
		if v.status == RiskLow {
			v.status = b.status
		}
		hit.Status = v.status
	}

	v.hits = append(v.hits, hit)
}

func run(c Catalog, m Metrics) verdict {
	v := verdict{score: baseScore, status: RiskLow}

	for _, g := range cascade {
		for _, b := range g {
			if b.when != nil && !b.when(m) {
				continue
			}
			v.apply(b, c, m)
			break
		}
	}

	if v.message == "" {
		v.message = c.AllClear
		v.status = RiskLow
	}
	v.score = clampInt(v.score, 0, 100)
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
