// Package monitor owns the live dashboard snapshot. Every patch is merged
// into a copy of the current state, rescored in full and published to
// listeners; readers always get value copies.
package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"healthguard/internal/scoring"
)

// Change describes one applied patch.
type Change struct {
	Previous  Dashboard
	Current   Dashboard
	Source    string
	AppliedAt time.Time
}

// Escalated reports whether the risk tier went up.
func (c Change) Escalated() bool {
	return scoring.Rank(c.Current.RiskStatus) > scoring.Rank(c.Previous.RiskStatus)
}

// StatusChanged reports whether the risk tier or headline changed.
func (c Change) StatusChanged() bool {
	return c.Current.RiskStatus != c.Previous.RiskStatus ||
		c.Current.StatusMessage != c.Previous.StatusMessage
}

// Listener is called synchronously after each applied patch, outside the
// state lock but in commit order. A listener must not call Apply or Reset.
type Listener func(Change)

// Monitor serialises updates to a single dashboard.
type Monitor struct {
	engine *scoring.Engine
	seed   Dashboard
	logger zerolog.Logger
	now    func() time.Time

	// deliver is held from commit through the listener fan-out so that
	// listeners see changes in the order they were committed.
	deliver sync.Mutex

	mu        sync.Mutex
	current   Dashboard
	updatedAt time.Time
	listeners []Listener
}

// New scores seed and returns a Monitor holding it.
func New(engine *scoring.Engine, seed Dashboard, logger zerolog.Logger) *Monitor {
	m := &Monitor{
		engine: engine,
		seed:   seed,
		logger: logger.With().Str("component", "monitor").Logger(),
		now:    time.Now,
	}
	m.current = m.score(seed)
	m.updatedAt = m.now().UTC()
	return m
}

// Current returns a copy of the latest dashboard and when it was computed.
func (m *Monitor) Current() (Dashboard, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.updatedAt
}

// Engine returns the scoring engine used for recomputation.
func (m *Monitor) Engine() *scoring.Engine {
	return m.engine
}

// Subscribe registers fn for every future change.
func (m *Monitor) Subscribe(fn Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Apply validates patch, merges it and rescores. An empty patch still
// rescores, which is how callers force a refresh.
func (m *Monitor) Apply(source string, patch Patch) (Change, error) {
	if err := patch.Validate(); err != nil {
		return Change{}, err
	}

	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	prev := m.current
	next := m.score(patch.applyTo(prev))
	m.current = next
	m.updatedAt = m.now().UTC()
	change := Change{Previous: prev, Current: next, Source: source, AppliedAt: m.updatedAt}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.logger.Debug().
		Str("source", source).
		Int("score", next.Score).
		Str("risk", string(next.RiskStatus)).
		Msg("snapshot rescored")

	for _, fn := range listeners {
		fn(change)
	}
	return change, nil
}

// Reset restores the seed values.
func (m *Monitor) Reset(source string) Change {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	prev := m.current
	next := m.score(m.seed)
	m.current = next
	m.updatedAt = m.now().UTC()
	change := Change{Previous: prev, Current: next, Source: source, AppliedAt: m.updatedAt}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
	return change
}

func (m *Monitor) score(d Dashboard) Dashboard {
	d.Snapshot = m.engine.Evaluate(d.Snapshot)
	return d
}
