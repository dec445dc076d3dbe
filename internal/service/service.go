package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"healthguard/internal/alerting"
	"healthguard/internal/config"
	"healthguard/internal/monitor"
	"healthguard/internal/report"
	"healthguard/internal/scheduler"
	"healthguard/internal/scoring"
	"healthguard/internal/simulator"
)

// SourceSimulator tags patches produced by the simulated device.
const SourceSimulator = "simulator"

const changeBuffer = 64

// Service orchestrates device syncs, report sampling and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	monitor   *monitor.Monitor
	device    *simulator.Device
	notifier  alerting.Notifier
	window    *report.Window
	logger    zerolog.Logger

	alertsOn bool
	cooldown time.Duration
	channels []string
	timeout  time.Duration
	hold     time.Duration

	changes chan monitor.Change

	mu          sync.Mutex
	lastAlertAt time.Time
	lastAlerted scoring.RiskStatus

	// editMu guards the record of the last change not made by the device.
	editMu     sync.Mutex
	lastEditAt time.Time
	rebase     bool
}

// New constructs the service and subscribes it to mon. sched and device may
// be nil when the simulator is disabled; notifier may be nil when alerting
// is off.
func New(cfg *config.Config, sched *scheduler.Scheduler, mon *monitor.Monitor, device *simulator.Device, notifier alerting.Notifier, window *report.Window, logger zerolog.Logger) *Service {
	s := &Service{
		scheduler: sched,
		monitor:   mon,
		device:    device,
		notifier:  notifier,
		window:    window,
		logger:    logger.With().Str("component", "service").Logger(),
		alertsOn:  cfg.Alerting.Enabled && notifier != nil,
		cooldown:  cfg.Alerting.Cooldown,
		channels:  cfg.Alerting.Channels,
		timeout:   cfg.Alerting.Timeout,
		hold:      cfg.Simulator.ManualHold,
		changes:   make(chan monitor.Change, changeBuffer),
	}
	mon.Subscribe(s.observe)
	return s
}

// Run dispatches changes and, with a scheduler, drives device syncs until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil || s.device == nil {
		s.dispatch(ctx)
		return ctx.Err()
	}

	s.logger.Info().Dur("interval", s.scheduler.Interval()).Msg("device simulator started")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.dispatch(ctx)
	}()
	err := s.scheduler.Run(ctx, s.Tick)
	wg.Wait()
	return err
}

// Tick performs one simulated device sync. Within the manual hold after an
// edit from another source the tick is skipped; the first tick after it
// continues the walk from the edited dashboard.
func (s *Service) Tick(ctx context.Context, at time.Time) error {
	if s.device == nil {
		return errors.New("simulator not configured")
	}

	s.editMu.Lock()
	editedAt := s.lastEditAt
	held := !editedAt.IsZero() && at.Sub(editedAt) < s.hold
	rebase := s.rebase && !held
	if rebase {
		s.rebase = false
	}
	s.editMu.Unlock()

	if held {
		s.logger.Debug().Time("at", at).Time("edited_at", editedAt).Msg("device sync held after manual edit")
		return nil
	}
	if rebase {
		current, _ := s.monitor.Current()
		s.device.Rebase(current)
	}

	patch, anomaly := s.device.Next()
	change, err := s.monitor.Apply(SourceSimulator, patch)
	if err != nil {
		return err
	}

	event := s.logger.Info()
	if !change.StatusChanged() {
		event = s.logger.Debug()
	}
	event.Time("at", at).
		Int("score", change.Current.Score).
		Str("risk", string(change.Current.RiskStatus)).
		Str("anomaly", string(anomaly)).
		Msg("device sync applied")
	return nil
}

// HandleChange records the change for the weekly report and alerts on
// escalation.
func (s *Service) HandleChange(ctx context.Context, c monitor.Change) {
	if s.window != nil {
		s.window.Record(c.AppliedAt, c.Current)
	}
	if !s.alertsOn || !c.Escalated() || !s.shouldAlert(c) {
		return
	}

	note := alerting.FromChange(c, s.channels)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("risk", string(note.Status)).Msg("failed to dispatch alert")
		return
	}
	s.logger.Info().
		Str("risk", string(note.Status)).
		Int("score", note.Score).
		Str("source", note.Source).
		Msg("risk escalation alerted")
}

// shouldAlert applies the cooldown. A higher tier than the last alert
// always goes through.
func (s *Service) shouldAlert(c monitor.Change) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := c.Current.RiskStatus
	within := !s.lastAlertAt.IsZero() && c.AppliedAt.Sub(s.lastAlertAt) < s.cooldown
	if within && scoring.Rank(status) <= scoring.Rank(s.lastAlerted) {
		s.logger.Debug().Str("risk", string(status)).Msg("alert suppressed by cooldown")
		return false
	}
	s.lastAlertAt = c.AppliedAt
	s.lastAlerted = status
	return true
}

// observe is the monitor listener. It notes edits from other sources before
// queueing the change for dispatch.
func (s *Service) observe(c monitor.Change) {
	if c.Source != SourceSimulator {
		s.editMu.Lock()
		s.lastEditAt = c.AppliedAt
		s.rebase = true
		s.editMu.Unlock()
	}
	s.enqueue(c)
}

func (s *Service) enqueue(c monitor.Change) {
	select {
	case s.changes <- c:
	default:
		s.logger.Warn().Str("source", c.Source).Msg("change queue full, dropping")
	}
}

func (s *Service) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-s.changes:
			s.HandleChange(ctx, c)
		}
	}
}
