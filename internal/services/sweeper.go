package services

import (
	"context"
	"log/slog"
	"time"
)

// maxBatchesPerSweep stops one tick from looping forever on attempts that
// keep failing to close.
const maxBatchesPerSweep = 10

// ExpirySweeper periodically closes in-progress attempts nobody touched
// after their end time. Lazy expiry on read paths stays authoritative.
type ExpirySweeper struct {
	attempts  AttemptService
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewExpirySweeper(attempts AttemptService, interval time.Duration, batchSize int, logger *slog.Logger) *ExpirySweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExpirySweeper{
		attempts:  attempts,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled. A non-positive interval disables the
// sweeper and Run returns immediately.
func (s *ExpirySweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Expiry sweeper disabled", "interval", s.interval)
		return
	}
	s.logger.Info("Expiry sweeper started", "interval", s.interval, "batch_size", s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep drains overdue attempts batch by batch and returns how many it closed.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	total := 0
	for i := 0; i < maxBatchesPerSweep; i++ {
		closed, err := s.attempts.ExpireOverdue(ctx, s.batchSize)
		total += closed
		if err != nil {
			s.logger.Error("Expiry sweep failed", "error", err)
			return total
		}
		if closed < s.batchSize {
			return total
		}
	}
	return total
}
