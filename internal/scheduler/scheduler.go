// Package scheduler paces device syncs on a fixed cadence.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SyncFunc performs one device sync for the slot starting at at.
type SyncFunc func(ctx context.Context, at time.Time) error

// Options tune the sync cadence.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// SyncTimeout bounds a single sync. Zero means one interval.
	SyncTimeout time.Duration
}

// Stats summarises the loop so far.
type Stats struct {
	Syncs    uint64
	Failures uint64
	Missed   uint64
	LastAt   time.Time
}

// Scheduler runs a SyncFunc once per slot. Slots that pass while a sync is
// still running are dropped, never replayed.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	stats   Stats
	failing int
}

// New constructs a Scheduler. Interval must be positive.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = opts.Interval
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}, nil
}

// Interval returns the sync period.
func (s *Scheduler) Interval() time.Duration {
	return s.opts.Interval
}

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run blocks, syncing once per slot until ctx is cancelled. Sync errors are
// logged and counted; they do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, fn SyncFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	next := s.firstSlot(time.Now().UTC())
	for {
		if behind := time.Since(next); behind > 0 {
			missed := uint64(behind/s.opts.Interval) + 1
			next = s.firstSlot(time.Now().UTC())
			s.recordMissed(missed)
			s.logger.Warn().Uint64("missed", missed).Time("resume_at", next).Msg("device syncs skipped")
		}
		if err := sleep(ctx, time.Until(next)); err != nil {
			return err
		}

		at := s.slotStart(next)
		s.runOne(ctx, fn, at)
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) runOne(ctx context.Context, fn SyncFunc, at time.Time) {
	syncCtx, cancel := context.WithTimeout(ctx, s.opts.SyncTimeout)
	defer cancel()

	err := fn(syncCtx, at)

	s.mu.Lock()
	s.stats.Syncs++
	s.stats.LastAt = at
	if err != nil {
		s.stats.Failures++
		s.failing++
	} else {
		s.failing = 0
	}
	failing := s.failing
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Time("at", at).Int("consecutive", failing).Msg("device sync failed")
		return
	}
	s.logger.Debug().Time("at", at).Msg("device sync done")
}

func (s *Scheduler) recordMissed(n uint64) {
	s.mu.Lock()
	s.stats.Missed += n
	s.mu.Unlock()
}

// firstSlot is the first slot boundary strictly after now.
func (s *Scheduler) firstSlot(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	slot := now.Truncate(s.opts.Interval)
	if !slot.After(now) {
		slot = slot.Add(s.opts.Interval)
	}
	return slot
}

func (s *Scheduler) slotStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
