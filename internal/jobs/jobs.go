// Package jobs runs scheduled background maintenance for the portal.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oceanledger/bluecarbon/internal/logging"
	"github.com/oceanledger/bluecarbon/internal/metrics"
	"github.com/oceanledger/bluecarbon/internal/wallet"
)

// Scheduler owns the cron instance and the registered maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	cache  wallet.Cache
	logger *logging.Logger
}

// NewScheduler creates the scheduler. cache may be nil when no Redis backend
// is configured; cache jobs are skipped in that case.
func NewScheduler(cache wallet.Cache, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		cache:  cache,
		logger: logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.cache != nil {
		// Keep the cache-size gauge fresh for the dashboard.
		if _, err := s.cron.AddFunc("@every 1m", s.reportCacheSize); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("maintenance scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn("maintenance jobs did not finish before shutdown deadline")
	}
}

func (s *Scheduler) reportCacheSize() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n := s.cache.Len(ctx)
	if n < 0 {
		s.logger.Warn("wallet cache size unavailable")
		return
	}
	metrics.SetCacheEntries(float64(n))
}
