package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsZeroInterval(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestNextTickAligned(t *testing.T) {
	s, err := New(Options{Interval: 5 * time.Second, AlignToStart: true}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 3, 14, 10, 0, 7, 0, time.UTC)
	if got := s.firstSlot(now); !got.Equal(now.Add(3 * time.Second)) {
		t.Fatalf("firstSlot = %s", got)
	}
	onSlot := time.Date(2025, 3, 14, 10, 0, 10, 0, time.UTC)
	if got := s.firstSlot(onSlot); !got.Equal(onSlot.Add(5 * time.Second)) {
		t.Fatalf("firstSlot on slot = %s", got)
	}
	if got := s.slotStart(onSlot.Add(time.Millisecond)); !got.Equal(onSlot) {
		t.Fatalf("slotStart = %s", got)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	s, err := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, at time.Time) error {
			if ticks.Add(1) == 3 {
				cancel()
			}
			return errors.New("tick errors are logged, not fatal")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if ticks.Load() < 3 {
		t.Fatalf("ticks = %d", ticks.Load())
	}
	if st := s.Stats(); st.Syncs < 3 || st.Failures != st.Syncs || st.LastAt.IsZero() {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRunBoundsEachSync(t *testing.T) {
	s, err := New(Options{Interval: 10 * time.Millisecond, SyncTimeout: 5 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := make(chan error, 1)
	go func() {
		_ = s.Run(ctx, func(ctx context.Context, at time.Time) error {
			<-ctx.Done()
			select {
			case result <- ctx.Err():
			default:
			}
			cancel()
			return ctx.Err()
		})
	}()

	select {
	case err := <-result:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("sync ctx ended with %v, want deadline", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sync was never bounded")
	}
}

func TestRunDropsSlotsMissedBySlowSync(t *testing.T) {
	s, err := New(Options{Interval: 10 * time.Millisecond, SyncTimeout: time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var syncs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, at time.Time) error {
			switch syncs.Add(1) {
			case 1:
				time.Sleep(45 * time.Millisecond)
			case 2:
				cancel()
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	st := s.Stats()
	if st.Missed == 0 {
		t.Fatalf("slow sync should drop slots: %+v", st)
	}
	if st.Failures != 0 {
		t.Fatalf("failures = %d", st.Failures)
	}
}
