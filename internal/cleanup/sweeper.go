// Package cleanup runs the periodic expiry sweep over the job store.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/report-renderer/internal/observability"
)

// Store is the part of the job store the sweeper needs.
type Store interface {
	CleanupOldJobs(ctx context.Context, maxAgeHours int) int64
}

// Sweeper deletes expired jobs on a fixed interval.
type Sweeper struct {
	store       Store
	maxAgeHours int
	interval    time.Duration
	logger      *observability.Logger
	metrics     *observability.Metrics

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper creates a sweeper. logger and metrics may be nil.
func NewSweeper(store Store, maxAgeHours int, interval time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Sweeper{
		store:       store,
		maxAgeHours: maxAgeHours,
		interval:    interval,
		logger:      logger.Component("cleanup"),
		metrics:     metrics,
		stop:        make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("cleanup sweeper started", "interval", s.interval, "max_age_hours", s.maxAgeHours)
}

// Stop ends the loop and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.logger.Info("cleanup sweeper stopped")
}

// SweepOnce deletes expired jobs and returns how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	removed := s.store.CleanupOldJobs(ctx, s.maxAgeHours)
	s.metrics.AddCleaned(removed)
	if removed > 0 {
		s.logger.Info("removed expired jobs", "count", removed)
	} else {
		s.logger.Debug("no expired jobs")
	}
	return removed
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}
