package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/repository"
	"charity-billing/internal/infra/logging"
	"charity-billing/internal/infra/metrics"
	"charity-billing/internal/infra/worker"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

type BillingReport struct {
	Total     int
	Succeeded int
	Failed    int // charges attempted and declined or errored
	Skipped   int // never attempted: the run was cut short by shutdown
}

type BillingUseCase interface {
	// ChargeDue bills every subscription due at `now` via its stored
	// token. One subscription's failure never blocks the others; the
	// batch fans out over a bounded worker pool.
	ChargeDue(ctx context.Context, now time.Time) (BillingReport, error)
}

type billingUC struct {
	subs          repository.SubscriptionRepository
	donations     repository.DonationRepository
	campaigns     repository.CampaignRepository
	gateways      Gateways
	tm            repository.TransactionManager
	workers       int
	chargeTimeout time.Duration
	log           *zerolog.Logger
}

func NewBillingUseCase(
	subs repository.SubscriptionRepository,
	donations repository.DonationRepository,
	campaigns repository.CampaignRepository,
	gateways Gateways,
	tm repository.TransactionManager,
	workers int,
	chargeTimeout time.Duration,
	logger *zerolog.Logger,
) *billingUC {
	if workers <= 0 {
		workers = 8
	}
	if chargeTimeout <= 0 {
		chargeTimeout = 30 * time.Second
	}
	ucLog := logger.With().Str("component", "BillingUC").Logger()
	return &billingUC{
		subs:          subs,
		donations:     donations,
		campaigns:     campaigns,
		gateways:      gateways,
		tm:            tm,
		workers:       workers,
		chargeTimeout: chargeTimeout,
		log:           &ucLog,
	}
}

func (u *billingUC) ChargeDue(ctx context.Context, now time.Time) (BillingReport, error) {
	defer logging.TraceDuration(u.log, "BillingUC.ChargeDue")()
	started := time.Now()
	due, err := u.subs.FindDue(ctx, nil, now)
	if err != nil {
		return BillingReport{}, err
	}

	var succeeded, failed int64
	skipped := 0
	pool := worker.NewPool(u.workers, u.log)
	pool.Start(ctx)
	for _, sub := range due {
		sub := sub
		err := pool.Submit(ctx, func(ctx context.Context) error {
			if err := u.chargeOne(ctx, sub, now); err != nil {
				atomic.AddInt64(&failed, 1)
				metrics.IncBillingCharge("failed")
				return err
			}
			atomic.AddInt64(&succeeded, 1)
			metrics.IncBillingCharge("succeeded")
			return nil
		})
		if err != nil {
			// Submit only fails when ctx is done. Nothing was attempted
			// for this subscription, so no charge attempt is recorded;
			// the next scheduled run picks it up.
			skipped++
		}
	}
	pool.Stop()

	report := BillingReport{
		Total:     len(due),
		Succeeded: int(succeeded),
		Failed:    int(failed),
		Skipped:   skipped,
	}
	metrics.IncBillingRun()
	metrics.ObserveBillingRun(time.Since(started).Seconds())
	u.log.Info().Int("total", report.Total).Int("succeeded", report.Succeeded).Int("failed", report.Failed).Int("skipped", report.Skipped).Msg("billing run finished")
	return report, nil
}

// chargeOne is one isolated failure domain: charge the token, then record
// the outcome. The charge call gets its own timeout so a hung vendor
// never stalls sibling subscriptions.
func (u *billingUC) chargeOne(ctx context.Context, sub *model.Subscription, now time.Time) error {
	gw, err := u.gateways.Pick(sub.Provider)
	if err != nil {
		return u.recordFailure(ctx, sub.ID, err)
	}
	if sub.ProviderToken == "" {
		return u.recordFailure(ctx, sub.ID, domain.ErrNoRecurringToken)
	}

	chargeCtx, cancel := context.WithTimeout(ctx, u.chargeTimeout)
	res, err := gw.CreateRecurringCharge(chargeCtx, sub.Amount, sub.Currency, sub.UserID, sub.ProviderToken)
	cancel()
	if err != nil {
		return u.recordFailure(ctx, sub.ID, err)
	}
	return u.recordSuccess(ctx, sub, res.TransactionID, now)
}

// recordSuccess books the collected money and advances the schedule. The
// subscription row is re-read inside the tx: if the user cancelled while
// the charge was in flight, the cancellation stands, but the charity
// donation is still recorded — collected money is never discarded.
func (u *billingUC) recordSuccess(ctx context.Context, snapshot *model.Subscription, transactionID string, now time.Time) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByID(ctx, tx, snapshot.ID)
		if err != nil {
			return err
		}

		if err := bookCharityShare(ctx, tx, u.donations, u.campaigns, sub, transactionID, now); err != nil {
			return err
		}

		sub.ChargeAttempts = 0
		sub.LastPayment = now
		sub.NextPayment = sub.BillingCycle.Next(now)
		sub.EndDate = sub.NextPayment
		sub.UpdatedAt = now
		return u.subs.Save(ctx, tx, sub)
	})
}

// recordFailure advances the retry counter; exhausting the budget cancels
// the subscription for good.
func (u *billingUC) recordFailure(ctx context.Context, subID string, cause error) error {
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByID(ctx, tx, subID)
		if err != nil {
			return err
		}
		sub.ChargeAttempts++
		if sub.ChargeAttempts >= sub.MaxChargeAttempts {
			sub.Status = model.SubscriptionStatusCancelled
			sub.AutoRenew = false
			metrics.IncSubscriptionCancelledByRetries()
			u.log.Warn().Str("subscription_id", sub.ID).Int("attempts", sub.ChargeAttempts).Msg("retry budget exhausted, subscription cancelled")
		}
		sub.UpdatedAt = time.Now()
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		u.log.Error().Err(err).Str("subscription_id", subID).Msg("failed to record charge failure")
	}
	u.log.Warn().Err(cause).Str("subscription_id", subID).Msg("recurring charge failed")
	return cause
}
