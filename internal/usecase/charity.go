package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/repository"
	"charity-billing/internal/infra/metrics"
)

// bookCharityShare records the charity slice of a confirmed token charge:
// a born-completed donation plus the campaign counters. The charge is
// already settled, so there is no redirect and no webhook to wait for.
// No-op when the subscription carries no charity share.
func bookCharityShare(
	ctx context.Context,
	tx repository.Tx,
	donations repository.DonationRepository,
	campaigns repository.CampaignRepository,
	sub *model.Subscription,
	transactionID string,
	now time.Time,
) error {
	if sub.CharityPercent <= 0 || sub.CharityAmount <= 0 {
		return nil
	}
	d := &model.Donation{
		ID:            uuid.NewString(),
		CampaignID:    sub.CharityCampaignID,
		UserID:        sub.UserID,
		Amount:        sub.CharityAmount,
		Currency:      sub.Currency,
		PaymentStatus: model.DonationStatusCompleted,
		TransactionID: transactionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := donations.Save(ctx, tx, d); err != nil {
		return err
	}
	if sub.CharityCampaignID != "" {
		if err := campaigns.AddDonation(ctx, tx, sub.CharityCampaignID, sub.CharityAmount); err != nil {
			return err
		}
		if err := campaigns.CheckCompletion(ctx, tx, sub.CharityCampaignID); err != nil {
			return err
		}
	}
	metrics.AddPaymentRevenue(sub.Currency, sub.CharityAmount)
	return nil
}
