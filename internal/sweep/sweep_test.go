package sweep

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingCleaner struct {
	calls atomic.Int32
	n     int
}

func (c *countingCleaner) CleanupExpiredInvitations(context.Context) int {
	c.calls.Add(1)
	return c.n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceAccumulates(t *testing.T) {
	c := &countingCleaner{n: 3}
	s := New(c, time.Minute, quietLogger())

	if got := s.RunOnce(context.Background()); got != 3 {
		t.Fatalf("RunOnce = %d, want 3", got)
	}
	s.RunOnce(context.Background())
	runs, expired := s.Stats()
	if runs != 2 || expired != 6 {
		t.Fatalf("stats = (%d, %d), want (2, 6)", runs, expired)
	}
}

func TestStartSweepsUntilStopped(t *testing.T) {
	c := &countingCleaner{}
	s := New(c, 5*time.Millisecond, quietLogger())

	stop := s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for c.calls.Load() < 3 {
		if time.Now().After(deadline) {
			stop()
			t.Fatalf("expected at least 3 sweeps, got %d", c.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
	stop()

	after := c.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if c.calls.Load() != after {
		t.Fatalf("sweeper kept running after stop")
	}
}

func TestStartStopsWithContext(t *testing.T) {
	c := &countingCleaner{}
	ctx, cancel := context.WithCancel(context.Background())
	stop := New(c, time.Hour, quietLogger()).Start(ctx)
	cancel()
	stop()
	if c.calls.Load() > 1 {
		t.Fatalf("expected at most the initial sweep, got %d", c.calls.Load())
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	s := New(&countingCleaner{}, 0, nil)
	if s.interval != time.Hour {
		t.Fatalf("interval = %v, want 1h", s.interval)
	}
}
