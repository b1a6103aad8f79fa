package repository

import (
	"context"
	"time"

	"charity-billing/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, qx Tx, p *model.Payment) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Payment, error)
	// FindByProviderRef locates a payment by (provider, vendor reference),
	// the only identity a webhook carries.
	FindByProviderRef(ctx context.Context, qx Tx, provider model.Provider, providerID string) (*model.Payment, error)
	// FindOpenByDonation returns the donation's non-terminal payment, or
	// ErrNotFound when every attempt has reached a terminal state.
	FindOpenByDonation(ctx context.Context, qx Tx, donationID string) (*model.Payment, error)
	// SetProviderRef stores the vendor reference and redirect URL after a
	// successful provider call.
	SetProviderRef(ctx context.Context, qx Tx, id, providerID, paymentURL string) error
	// UpdateStatusIfPending applies status (and the raw vendor snapshot)
	// only when the current status is still pending. Returns false without
	// error when the row was already terminal — this conditional write IS
	// the terminal-state guard, safe under concurrent webhook delivery.
	UpdateStatusIfPending(ctx context.Context, qx Tx, id string, status model.PaymentStatus, meta map[string]interface{}) (bool, error)
	// MarkStalePendingFailed fails pending payments older than the cutoff.
	// Returns the number of rows swept.
	MarkStalePendingFailed(ctx context.Context, qx Tx, cutoff time.Time) (int, error)
}
