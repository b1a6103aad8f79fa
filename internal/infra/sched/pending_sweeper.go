package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"charity-billing/internal/domain/ports/repository"
)

// PendingSweeper fails pending payments that never got a webhook: the
// donor abandoned the redirect, or the vendor lost the callback. The
// conditional update never touches rows a webhook already finalized.
type PendingSweeper struct {
	interval time.Duration
	maxAge   time.Duration
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewPendingSweeper(interval, maxAge time.Duration, payments repository.PaymentRepository, logger *zerolog.Logger) *PendingSweeper {
	wLog := logger.With().Str("component", "PendingSweeper").Logger()
	return &PendingSweeper{interval: interval, maxAge: maxAge, payments: payments, log: &wLog}
}

func (w *PendingSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting pending sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping pending sweeper")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.payments.MarkStalePendingFailed(ctx, nil, time.Now().Add(-w.maxAge))
			if err != nil {
				w.log.Error().Err(err).Msg("pending sweep failed")
				continue
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("stale pending payments failed")
			}
		}
	}
}
