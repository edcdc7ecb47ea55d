package events

import (
	"context"
	"log/slog"
	"time"
)

const defaultBatchSize = 100

// Relay drains the outbox on a fixed interval in-process. It is the
// lightweight alternative to running the Temporal worker.
type Relay struct {
	Dispatcher *Dispatcher
	Interval   time.Duration
	BatchSize  int
	Logger     *slog.Logger
}

// Run drains until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := r.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("outbox relay started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			n, err := r.Dispatcher.Drain(ctx, r.batchSize())
			if err != nil {
				logger.Warn("outbox drain incomplete", "delivered", n, "err", err)
			} else if n > 0 {
				logger.Info("outbox drained", "delivered", n)
			}
		}
	}
}

func (r *Relay) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return defaultBatchSize
}
