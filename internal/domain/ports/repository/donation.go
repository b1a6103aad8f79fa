package repository

import (
	"context"

	"charity-billing/internal/domain/model"
)

// -----------------------------
// Donations
// -----------------------------

type DonationRepository interface {
	Save(ctx context.Context, qx Tx, d *model.Donation) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Donation, error)
	// UpdateStatus flips the donation's payment status and records the
	// vendor transaction id. Callers guarantee at-most-once completion.
	UpdateStatus(ctx context.Context, qx Tx, id string, status model.DonationStatus, transactionID string) error
}

// -----------------------------
// Downstream collaborators (owned elsewhere, consumed exactly once per
// reconciled success)
// -----------------------------

type CampaignRepository interface {
	AddDonation(ctx context.Context, qx Tx, campaignID string, amount int64) error
	CheckCompletion(ctx context.Context, qx Tx, campaignID string) error
}

type PartnerRepository interface {
	UpdateStats(ctx context.Context, qx Tx, partnerID string) error
}
