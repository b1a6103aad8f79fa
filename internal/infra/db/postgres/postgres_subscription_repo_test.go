//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"charity-billing/internal/domain/model"
)

func TestSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewSubscriptionRepo(testPool)

	newSub := func(t *testing.T, nextPayment time.Time) *model.Subscription {
		t.Helper()
		s, err := model.NewSubscription(uuid.NewString(), uuid.NewString(), "premium",
			model.BillingCycleMonthly, 1000, "RUB", 10, "camp-1",
			model.ProviderDomestic, "tok-1", time.Now())
		if err != nil {
			t.Fatalf("failed to build subscription: %v", err)
		}
		s.NextPayment = nextPayment
		return s
	}

	t.Run("should save and round-trip a subscription", func(t *testing.T) {
		cleanup(t)

		s := newSub(t, time.Now().Add(24*time.Hour))
		if err := repo.Save(ctx, nil, s); err != nil {
			t.Fatalf("Failed to save subscription: %v", err)
		}

		found, err := repo.FindByID(ctx, nil, s.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.ProviderToken != "tok-1" || found.CharityAmount != 100 {
			t.Errorf("round-trip lost fields: %+v", found)
		}

		// Upsert path: a lifecycle change sticks.
		s.Status = model.SubscriptionStatusCancelled
		s.AutoRenew = false
		if err := repo.Save(ctx, nil, s); err != nil {
			t.Fatalf("Failed to update subscription: %v", err)
		}
		found, _ = repo.FindByID(ctx, nil, s.ID)
		if found.Status != model.SubscriptionStatusCancelled || found.AutoRenew {
			t.Errorf("expected cancelled without auto-renew, got %s auto_renew=%v", found.Status, found.AutoRenew)
		}
	})

	t.Run("should list only active auto-renewing subscriptions that are due", func(t *testing.T) {
		cleanup(t)

		due := newSub(t, time.Now().Add(-time.Hour))
		notYet := newSub(t, time.Now().Add(24*time.Hour))
		cancelled := newSub(t, time.Now().Add(-time.Hour))
		cancelled.Status = model.SubscriptionStatusCancelled
		optedOut := newSub(t, time.Now().Add(-time.Hour))
		optedOut.AutoRenew = false

		for _, s := range []*model.Subscription{due, notYet, cancelled, optedOut} {
			if err := repo.Save(ctx, nil, s); err != nil {
				t.Fatalf("Failed to save subscription: %v", err)
			}
		}

		found, err := repo.FindDue(ctx, nil, time.Now())
		if err != nil {
			t.Fatalf("FindDue failed: %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("expected 1 due subscription, got %d", len(found))
		}
		if found[0].ID != due.ID {
			t.Error("found the wrong subscription")
		}
	})
}
