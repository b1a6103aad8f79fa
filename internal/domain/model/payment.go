package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // persisted before the provider call; awaiting webhook
	PaymentStatusSucceeded PaymentStatus = "succeeded" // confirmed by the provider
	PaymentStatusFailed    PaymentStatus = "failed"    // rejected or explicitly failed
	PaymentStatusCancelled PaymentStatus = "cancelled" // abandoned at the gateway
)

// Terminal reports whether no further transition is permitted from s.
// Transitions only go pending -> {succeeded, failed, cancelled}.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// Payment records one charge attempt against a donation.
type Payment struct {
	ID         string        // UUID
	DonationID string        // owning donation, one payment attempt per row
	Provider   Provider      // domestic | international
	Amount     int64         // minor units, integer to avoid float errors
	Currency   string        // ISO code, e.g. "RUB"
	Status     PaymentStatus // see constants above
	ProviderID string        // vendor-assigned reference, set after the provider call
	PaymentURL string        // redirect URL returned by the provider
	Meta       map[string]interface{} // raw vendor payload snapshot (JSONB in DB)
	CreatedAt  time.Time
	UpdatedAt  time.Time
	PaidAt     *time.Time // set when succeeded
}
