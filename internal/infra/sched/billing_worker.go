package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"charity-billing/internal/infra/notify"
	red "charity-billing/internal/infra/redis"
	"charity-billing/internal/usecase"
)

const billingLockKey = "billing:run"

// BillingWorker triggers the billing engine on a fixed schedule. A redis
// lock ensures exactly one node bills the due batch per tick; losers skip
// the round, the winner's run covers everyone.
type BillingWorker struct {
	interval time.Duration
	lockTTL  time.Duration
	billing  usecase.BillingUseCase
	locker   red.Locker
	notifier notify.Notifier
	log      *zerolog.Logger
}

func NewBillingWorker(interval, lockTTL time.Duration, billing usecase.BillingUseCase, locker red.Locker, notifier notify.Notifier, logger *zerolog.Logger) *BillingWorker {
	wLog := logger.With().Str("component", "BillingWorker").Logger()
	return &BillingWorker{
		interval: interval,
		lockTTL:  lockTTL,
		billing:  billing,
		locker:   locker,
		notifier: notifier,
		log:      &wLog,
	}
}

func (w *BillingWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting billing worker")
	// Run once on startup, then on every tick
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping billing worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *BillingWorker) runOnce(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, billingLockKey, w.lockTTL)
	if err != nil {
		if errors.Is(err, red.ErrLockHeld) {
			w.log.Debug().Msg("billing run held by another node, skipping")
		} else {
			w.log.Error().Err(err).Msg("billing lock error")
		}
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, billingLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("billing lock release failed")
		}
	}()

	report, err := w.billing.ChargeDue(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("billing run failed")
		w.notifier.Alert(ctx, fmt.Sprintf("billing run failed: %v", err))
		return
	}
	if report.Total > 0 {
		w.notifier.Summary(ctx, fmt.Sprintf("billing run: %d due, %d succeeded, %d failed, %d skipped", report.Total, report.Succeeded, report.Failed, report.Skipped))
	}
}
