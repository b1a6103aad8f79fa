package model

import "time"

type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusFailed    DonationStatus = "failed"
)

// Donation is owned by the campaign subsystem; the payment core only reads
// it and flips PaymentStatus exactly once when a linked payment succeeds.
type Donation struct {
	ID            string // UUID
	CampaignID    string // UUID of the funded campaign
	PartnerID     string // UUID of the campaign's partner, empty if none
	UserID        string // UUID of the donor, empty for anonymous
	Amount        int64  // minor units
	Currency      string
	PaymentStatus DonationStatus
	TransactionID string // vendor transaction id, set on completion
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
