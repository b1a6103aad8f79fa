//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/adapter"
	"charity-billing/internal/usecase"
)

func seedDueSubscription(t *testing.T, repo *mockSubscriptionRepo, id string, charityPercent int, token string) *model.Subscription {
	t.Helper()
	created := time.Now().AddDate(0, -2, 0)
	s, err := model.NewSubscription(id, "user-"+id, "premium", model.BillingCycleMonthly, 1000, "RUB", charityPercent, "camp-1", model.ProviderDomestic, token, created)
	if err != nil {
		t.Fatalf("failed to build subscription: %v", err)
	}
	// One cycle after creation has passed, so the subscription is due.
	if err := repo.Save(context.Background(), nil, s); err != nil {
		t.Fatalf("failed to seed subscription: %v", err)
	}
	return s
}

func newBillingFixture(subs *mockSubscriptionRepo, donations *mockDonationRepo, campaigns *mockCampaignRepo, gw *mockGateway) usecase.BillingUseCase {
	return usecase.NewBillingUseCase(subs, donations, campaigns, usecase.Gateways{model.ProviderDomestic: gw}, mockTxManager{}, 4, time.Second, testLogger())
}

func TestBillingChargeDue(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("should charge a due subscription and advance its schedule", func(t *testing.T) {
		subs := newMockSubscriptionRepo()
		donations := newMockDonationRepo()
		campaigns := &mockCampaignRepo{}
		gw := &mockGateway{name: model.ProviderDomestic}
		seedDueSubscription(t, subs, "sub-1", 10, "tok-1")
		uc := newBillingFixture(subs, donations, campaigns, gw)

		report, err := uc.ChargeDue(ctx, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Total != 1 || report.Succeeded != 1 || report.Failed != 0 {
			t.Fatalf("unexpected report: %+v", report)
		}

		s, _ := subs.FindByID(ctx, nil, "sub-1")
		if s.ChargeAttempts != 0 {
			t.Errorf("expected attempts reset, got %d", s.ChargeAttempts)
		}
		if !s.NextPayment.After(now) {
			t.Errorf("expected next payment after now, got %v", s.NextPayment)
		}
		if !s.LastPayment.Equal(now) {
			t.Errorf("expected last payment = now, got %v", s.LastPayment)
		}
		if !s.EndDate.Equal(s.NextPayment) {
			t.Errorf("expected end date to track next payment")
		}
	})

	t.Run("should record the charity share as a completed donation", func(t *testing.T) {
		subs := newMockSubscriptionRepo()
		donations := newMockDonationRepo()
		campaigns := &mockCampaignRepo{}
		gw := &mockGateway{name: model.ProviderDomestic}
		seedDueSubscription(t, subs, "sub-1", 10, "tok-1")
		uc := newBillingFixture(subs, donations, campaigns, gw)

		if _, err := uc.ChargeDue(ctx, now); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		if len(donations.donations) != 1 {
			t.Fatalf("expected one charity donation, got %d", len(donations.donations))
		}
		for _, d := range donations.donations {
			if d.PaymentStatus != model.DonationStatusCompleted {
				t.Errorf("expected donation born completed, got %s", d.PaymentStatus)
			}
			if d.Amount != 100 {
				t.Errorf("expected charity amount 100, got %d", d.Amount)
			}
			if d.TransactionID != "txn-1" {
				t.Errorf("expected vendor transaction recorded, got %q", d.TransactionID)
			}
		}
		if campaigns.addDonationCalls != 1 || campaigns.addedAmount != 100 {
			t.Errorf("expected campaign credited once with 100, got calls=%d amount=%d", campaigns.addDonationCalls, campaigns.addedAmount)
		}
	})

	t.Run("should not create a donation when no charity share is configured", func(t *testing.T) {
		subs := newMockSubscriptionRepo()
		donations := newMockDonationRepo()
		campaigns := &mockCampaignRepo{}
		gw := &mockGateway{name: model.ProviderDomestic}
		seedDueSubscription(t, subs, "sub-1", 0, "tok-1")
		uc := newBillingFixture(subs, donations, campaigns, gw)

		if _, err := uc.ChargeDue(ctx, now); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(donations.donations) != 0 {
			t.Errorf("expected no donation, got %d", len(donations.donations))
		}
	})

	t.Run("should cancel after the retry budget is exhausted", func(t *testing.T) {
		subs := newMockSubscriptionRepo()
		donations := newMockDonationRepo()
		campaigns := &mockCampaignRepo{}
		chargeCalls := 0
		gw := &mockGateway{
			name: model.ProviderDomestic,
			CreateRecurringChargeFunc: func(context.Context, int64, string, string, string) (adapter.ChargeResult, error) {
				chargeCalls++
				return adapter.ChargeResult{}, &domain.ProviderError{Provider: "domestic", Code: "DECLINED", Message: "insufficient funds"}
			},
		}
		seedDueSubscription(t, subs, "sub-1", 0, "tok-1")
		uc := newBillingFixture(subs, donations, campaigns, gw)

		for run := 1; run <= 3; run++ {
			report, err := uc.ChargeDue(ctx, now)
			if err != nil {
				t.Fatalf("run %d failed: %v", run, err)
			}
			if report.Failed != 1 {
				t.Fatalf("run %d: expected one failure, got %+v", run, report)
			}
		}

		s, _ := subs.FindByID(ctx, nil, "sub-1")
		if s.Status != model.SubscriptionStatusCancelled {
			t.Errorf("expected cancelled after %d attempts, got %s", model.DefaultMaxChargeAttempts, s.Status)
		}
		if s.AutoRenew {
			t.Error("expected auto renew off after cancellation")
		}

		// Run 4: the cancelled subscription is no longer eligible.
		report, err := uc.ChargeDue(ctx, now)
		if err != nil {
			t.Fatalf("run 4 failed: %v", err)
		}
		if report.Total != 0 {
			t.Errorf("expected cancelled subscription excluded, got %+v", report)
		}
		if chargeCalls != 3 {
			t.Errorf("expected exactly 3 charge attempts, got %d", chargeCalls)
		}
	})

	t.Run("should isolate one failing subscription from the rest", func(t *testing.T) {
		subs := newMockSubscriptionRepo()
		donations := newMockDonationRepo()
		campaigns := &mockCampaignRepo{}
		gw := &mockGateway{
			name: model.ProviderDomestic,
			CreateRecurringChargeFunc: func(_ context.Context, _ int64, _ string, _ string, token string) (adapter.ChargeResult, error) {
				if token == "tok-bad" {
					return adapter.ChargeResult{}, &domain.ProviderError{Provider: "domestic", Code: "DECLINED", Message: "card expired"}
				}
				return adapter.ChargeResult{TransactionID: "txn-ok"}, nil
			},
		}
		seedDueSubscription(t, subs, "sub-ok-1", 0, "tok-1")
		seedDueSubscription(t, subs, "sub-bad", 0, "tok-bad")
		seedDueSubscription(t, subs, "sub-ok-2", 0, "tok-2")
		uc := newBillingFixture(subs, donations, campaigns, gw)

		report, err := uc.ChargeDue(ctx, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Total != 3 || report.Succeeded != 2 || report.Failed != 1 {
			t.Fatalf("unexpected report: %+v", report)
		}

		bad, _ := subs.FindByID(ctx, nil, "sub-bad")
		if bad.ChargeAttempts != 1 {
			t.Errorf("expected one failed attempt recorded, got %d", bad.ChargeAttempts)
		}
		for _, id := range []string{"sub-ok-1", "sub-ok-2"} {
			s, _ := subs.FindByID(ctx, nil, id)
			if s.ChargeAttempts != 0 || !s.NextPayment.After(now) {
				t.Errorf("%s: expected successful charge to advance schedule", id)
			}
		}
	})

	t.Run("should fail a subscription with no stored token", func(t *testing.T) {
		subs := newMockSubscriptionRepo()
		donations := newMockDonationRepo()
		campaigns := &mockCampaignRepo{}
		gw := &mockGateway{
			name: model.ProviderDomestic,
			CreateRecurringChargeFunc: func(context.Context, int64, string, string, string) (adapter.ChargeResult, error) {
				t.Fatal("charge must not be attempted without a token")
				return adapter.ChargeResult{}, nil
			},
		}
		seedDueSubscription(t, subs, "sub-1", 0, "")
		uc := newBillingFixture(subs, donations, campaigns, gw)

		report, err := uc.ChargeDue(ctx, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Failed != 1 {
			t.Errorf("expected one failure, got %+v", report)
		}
		s, _ := subs.FindByID(ctx, nil, "sub-1")
		if s.ChargeAttempts != 1 {
			t.Errorf("expected attempt recorded, got %d", s.ChargeAttempts)
		}
	})

	t.Run("should let a concurrent cancellation stand while keeping the money", func(t *testing.T) {
		subs := newMockSubscriptionRepo()
		donations := newMockDonationRepo()
		campaigns := &mockCampaignRepo{}
		gw := &mockGateway{name: model.ProviderDomestic}
		seed := seedDueSubscription(t, subs, "sub-1", 10, "tok-1")

		// The user cancels between FindDue and the success bookkeeping.
		gw.CreateRecurringChargeFunc = func(context.Context, int64, string, string, string) (adapter.ChargeResult, error) {
			s, err := subs.FindByID(context.Background(), nil, seed.ID)
			if err != nil {
				return adapter.ChargeResult{}, err
			}
			s.Status = model.SubscriptionStatusCancelled
			s.AutoRenew = false
			if err := subs.Save(context.Background(), nil, s); err != nil {
				return adapter.ChargeResult{}, err
			}
			return adapter.ChargeResult{TransactionID: "txn-1"}, nil
		}
		uc := newBillingFixture(subs, donations, campaigns, gw)

		report, err := uc.ChargeDue(ctx, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Succeeded != 1 {
			t.Fatalf("expected the charge to count as succeeded, got %+v", report)
		}

		s, _ := subs.FindByID(ctx, nil, "sub-1")
		if s.Status != model.SubscriptionStatusCancelled {
			t.Errorf("expected cancellation to stand, got %s", s.Status)
		}
		if len(donations.donations) != 1 {
			t.Errorf("expected the collected charity share recorded, got %d donations", len(donations.donations))
		}
	})

	t.Run("should report unattempted charges as skipped, not failed", func(t *testing.T) {
		subs := newMockSubscriptionRepo()
		donations := newMockDonationRepo()
		campaigns := &mockCampaignRepo{}
		gw := &mockGateway{name: model.ProviderDomestic}
		for _, id := range []string{"sub-1", "sub-2", "sub-3", "sub-4", "sub-5"} {
			seedDueSubscription(t, subs, id, 0, "tok-"+id)
		}
		uc := newBillingFixture(subs, donations, campaigns, gw)

		// A shutdown mid-batch: whatever was queued may still succeed,
		// but nothing unattempted may be blamed on the cardholder.
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := uc.ChargeDue(cancelled, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Failed != 0 {
			t.Errorf("expected no failures, got %+v", report)
		}
		if report.Succeeded+report.Skipped != report.Total {
			t.Errorf("expected succeeded+skipped to cover the batch, got %+v", report)
		}
		for _, id := range []string{"sub-1", "sub-2", "sub-3", "sub-4", "sub-5"} {
			s, _ := subs.FindByID(context.Background(), nil, id)
			if s.ChargeAttempts != 0 {
				t.Errorf("%s: expected no charge attempt recorded, got %d", id, s.ChargeAttempts)
			}
		}
	})

	t.Run("should do nothing when nothing is due", func(t *testing.T) {
		subs := newMockSubscriptionRepo()
		uc := newBillingFixture(subs, newMockDonationRepo(), &mockCampaignRepo{}, &mockGateway{name: model.ProviderDomestic})

		report, err := uc.ChargeDue(ctx, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Total != 0 || report.Succeeded != 0 || report.Failed != 0 {
			t.Errorf("unexpected report: %+v", report)
		}
	})
}
