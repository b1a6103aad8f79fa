package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/repository"
	"charity-billing/internal/infra/metrics"
	"charity-billing/internal/infra/notify"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

type ReconcileUseCase interface {
	// Process applies one inbound vendor event. It is safe under
	// concurrent, duplicate and out-of-order delivery for the same
	// payment: the conditional status write is the correctness mechanism.
	// A bad signature returns ErrSignatureInvalid; the transport layer
	// still acknowledges the vendor to avoid retry storms.
	Process(ctx context.Context, provider model.Provider, rawBody []byte, signature string) error
}

type reconcileUC struct {
	gateways  Gateways
	payments  repository.PaymentRepository
	donations repository.DonationRepository
	campaigns repository.CampaignRepository
	partners  repository.PartnerRepository
	tm        repository.TransactionManager
	notifier  notify.Notifier
	log       *zerolog.Logger
}

func NewReconcileUseCase(
	gateways Gateways,
	payments repository.PaymentRepository,
	donations repository.DonationRepository,
	campaigns repository.CampaignRepository,
	partners repository.PartnerRepository,
	tm repository.TransactionManager,
	notifier notify.Notifier,
	logger *zerolog.Logger,
) *reconcileUC {
	ucLog := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		gateways:  gateways,
		payments:  payments,
		donations: donations,
		campaigns: campaigns,
		partners:  partners,
		tm:        tm,
		notifier:  notifier,
		log:       &ucLog,
	}
}

func (u *reconcileUC) Process(ctx context.Context, provider model.Provider, rawBody []byte, signature string) error {
	eventID := ulid.Make().String()
	log := u.log.With().Str("event_id", eventID).Str("provider", string(provider)).Logger()

	gw, err := u.gateways.Pick(provider)
	if err != nil {
		metrics.IncWebhookEvent(string(provider), "error")
		return err
	}

	if !gw.VerifyWebhookSignature(rawBody, signature) {
		// Dropped but acknowledged upstream; alert out-of-band so a forged
		// or corrupted event is not silently lost.
		metrics.IncWebhookEvent(string(provider), "bad_signature")
		log.Warn().Msg("webhook signature rejected, event dropped")
		u.notifier.Alert(ctx, fmt.Sprintf("webhook %s: bad signature from %s, event dropped", eventID, provider))
		return domain.ErrSignatureInvalid
	}

	evt, err := gw.ParseWebhook(rawBody)
	if err != nil {
		metrics.IncWebhookEvent(string(provider), "error")
		log.Warn().Err(err).Msg("webhook payload rejected")
		return err
	}
	log = log.With().Str("provider_id", evt.ProviderID).Str("status", string(evt.Status)).Logger()

	if !evt.Status.Terminal() {
		metrics.IncWebhookEvent(string(provider), "ignored")
		return nil
	}

	outcome := "applied"
	var finalized *model.Payment
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByProviderRef(ctx, tx, provider, evt.ProviderID)
		if errors.Is(err, domain.ErrNotFound) {
			// The vendor may notify about a payment this system never
			// created (test traffic). Benign no-op.
			outcome = "unknown_payment"
			return nil
		}
		if err != nil {
			return err
		}

		applied, err := u.payments.UpdateStatusIfPending(ctx, tx, p.ID, evt.Status, evt.Raw)
		if err != nil {
			return err
		}
		if !applied {
			// Terminal-state guard: a redelivered or out-of-order event
			// never overwrites a finalized payment.
			outcome = "duplicate"
			return nil
		}
		finalized = p
		d, err := u.donations.FindByID(ctx, tx, p.DonationID)
		if err != nil {
			return err
		}

		if evt.Status != model.PaymentStatusSucceeded {
			// The attempt is dead; a donation still waiting on it fails
			// with it. A later retry starts a fresh payment row.
			if d.PaymentStatus == model.DonationStatusPending {
				return u.donations.UpdateStatus(ctx, tx, d.ID, model.DonationStatusFailed, evt.TransactionID)
			}
			return nil
		}

		// pending -> succeeded: complete the donation and notify the
		// downstream collaborators exactly once, inside the same tx.
		if err := u.donations.UpdateStatus(ctx, tx, d.ID, model.DonationStatusCompleted, evt.TransactionID); err != nil {
			return err
		}
		if err := u.campaigns.AddDonation(ctx, tx, d.CampaignID, p.Amount); err != nil {
			return err
		}
		if err := u.campaigns.CheckCompletion(ctx, tx, d.CampaignID); err != nil {
			return err
		}
		if d.PartnerID != "" {
			if err := u.partners.UpdateStats(ctx, tx, d.PartnerID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.IncWebhookEvent(string(provider), "error")
		log.Error().Err(err).Msg("webhook reconciliation failed")
		return err
	}

	if outcome == "applied" && finalized != nil {
		metrics.IncPayment(string(provider), string(evt.Status))
		if evt.Status == model.PaymentStatusSucceeded {
			metrics.AddPaymentRevenue(finalized.Currency, finalized.Amount)
		}
	}
	metrics.IncWebhookEvent(string(provider), outcome)
	log.Info().Str("outcome", outcome).Msg("webhook processed")
	return nil
}
