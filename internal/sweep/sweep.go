// Package sweep periodically expires stale invitations.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cleaner expires pending invitations whose expiry has passed.
type Cleaner interface {
	CleanupExpiredInvitations(ctx context.Context) int
}

// Sweeper runs a Cleaner on a fixed interval.
type Sweeper struct {
	cleaner  Cleaner
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	total int
	runs  int
}

// New returns a Sweeper. A non-positive interval defaults to one hour.
func New(c Cleaner, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{cleaner: c, interval: interval, logger: logger}
}

// RunOnce performs a single sweep and returns how many invitations expired.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	n := s.cleaner.CleanupExpiredInvitations(ctx)
	s.mu.Lock()
	s.total += n
	s.runs++
	s.mu.Unlock()
	if n > 0 {
		s.logger.InfoContext(ctx, "invitation sweep", slog.Int("expired", n))
	}
	return n
}

// Stats returns the number of completed runs and invitations expired so far.
func (s *Sweeper) Stats() (runs, expired int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.total
}

// Start sweeps once immediately, then every interval until ctx ends or the
// returned stop function is called. stop waits for the loop to exit.
func (s *Sweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunOnce(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
