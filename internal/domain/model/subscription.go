package model

import (
	"time"

	"charity-billing/internal/domain"
)

type BillingCycle string

const (
	BillingCycleMonthly  BillingCycle = "monthly"
	BillingCycle6Months  BillingCycle = "6months"
	BillingCycle12Months BillingCycle = "12months"
	BillingCycle3Years   BillingCycle = "3years"
)

// months returns the cycle length in calendar months, or 0 for an unknown cycle.
func (c BillingCycle) months() int {
	switch c {
	case BillingCycleMonthly:
		return 1
	case BillingCycle6Months:
		return 6
	case BillingCycle12Months:
		return 12
	case BillingCycle3Years:
		return 36
	default:
		return 0
	}
}

func (c BillingCycle) Valid() bool { return c.months() > 0 }

// Next advances from by one billing cycle. The day of month is clamped to
// the last day of the target month, so a charge on Jan 31 lands on Feb 28/29
// rather than spilling into March.
func (c BillingCycle) Next(from time.Time) time.Time {
	months := c.months()
	if months == 0 {
		months = 1
	}
	y := from.Year()
	m := int(from.Month()) + months
	y += (m - 1) / 12
	m = (m-1)%12 + 1

	d := from.Day()
	lastDay := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, from.Location()).AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(y, time.Month(m), d, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

const DefaultMaxChargeAttempts = 3

// Subscription is a recurring charity-subscription fee charged against a
// stored provider token. Only the billing engine and the owning user's
// pause/resume/cancel actions mutate it after checkout.
type Subscription struct {
	ID                string // UUID
	UserID            string // UUID of the owner
	PlanType          string
	BillingCycle      BillingCycle
	Amount            int64  // minor units charged per cycle
	Currency          string // ISO code, e.g. "RUB"
	CharityPercent    int   // share routed to a donation record, 0..100
	CharityAmount     int64 // derived: Amount * CharityPercent / 100
	CharityCampaignID string // campaign receiving the charity share
	Provider          Provider
	ProviderToken     string // opaque recurring-charge credential
	Status            SubscriptionStatus
	AutoRenew         bool
	ChargeAttempts    int // consecutive failures; resets to 0 on success
	MaxChargeAttempts int
	LastPayment       time.Time
	NextPayment       time.Time // always strictly after LastPayment
	EndDate           time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewSubscription builds an active subscription starting now. The first
// recurring charge is due one cycle from now; checkout collects the
// initial period up front.
func NewSubscription(id, userID, planType string, cycle BillingCycle, amount int64, currency string, charityPercent int, campaignID string, provider Provider, token string, now time.Time) (*Subscription, error) {
	if id == "" || userID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "RUB"
	}
	if !cycle.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if charityPercent < 0 || charityPercent > 100 {
		return nil, domain.ErrInvalidArgument
	}
	next := cycle.Next(now)
	return &Subscription{
		ID:                id,
		UserID:            userID,
		PlanType:          planType,
		BillingCycle:      cycle,
		Amount:            amount,
		Currency:          currency,
		CharityPercent:    charityPercent,
		CharityAmount:     amount * int64(charityPercent) / 100,
		CharityCampaignID: campaignID,
		Provider:          provider,
		ProviderToken:     token,
		Status:            SubscriptionStatusActive,
		AutoRenew:         true,
		MaxChargeAttempts: DefaultMaxChargeAttempts,
		LastPayment:       now,
		NextPayment:       next,
		EndDate:           next,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Cancelled subscriptions are terminal; the billing engine never selects
// them again and resume is rejected.
func (s *Subscription) Terminal() bool {
	return s.Status == SubscriptionStatusCancelled
}
