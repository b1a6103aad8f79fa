package repository

import (
	"context"
	"time"

	"charity-billing/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, qx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Subscription, error)
	// FindDue returns subscriptions eligible for billing at `now`:
	// active, auto-renewing, next_payment <= now. Re-queried on every
	// engine run; eligibility is never cached.
	FindDue(ctx context.Context, qx Tx, now time.Time) ([]*model.Subscription, error)
}
