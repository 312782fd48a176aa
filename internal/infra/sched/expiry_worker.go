package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-paid-access/internal/infra/metrics"
	"telegram-paid-access/internal/usecase"
)

// ExpiryWorker periodically sweeps elapsed subscriptions via the use case.
type ExpiryWorker struct {
	interval time.Duration
	expiry   *usecase.ExpiryUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, expiry *usecase.ExpiryUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		expiry:   expiry,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	// Run once on startup, then on every tick
	w.runSweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *ExpiryWorker) runSweep(ctx context.Context) {
	start := time.Now()
	report, err := w.expiry.Sweep(ctx, start)
	if err != nil {
		w.log.Error().Err(err).Msg("sweep failed")
		return
	}
	metrics.ObserveSweepDuration(time.Since(start).Seconds())
	if report.Processed > 0 {
		metrics.IncSubscriptionsExpired(report.Processed)
	}
}
