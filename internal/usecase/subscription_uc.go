package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/repository"
	"charity-billing/internal/infra/logging"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type CheckoutRequest struct {
	PlanType          string
	BillingCycle      model.BillingCycle
	Amount            int64
	Currency          string
	CharityPercent    int
	CharityCampaignID string
	PaymentToken      string // stored recurring-charge credential
	CardNumber        string // optional; routes the recurring-charge provider
}

type SubscriptionUseCase interface {
	// Checkout collects the first period up front: the stored token is
	// charged synchronously and the subscription is persisted with the
	// next charge one cycle out. A rejected charge persists nothing.
	Checkout(ctx context.Context, userID string, req CheckoutRequest) (*model.Subscription, error)
	// Pause stops future charges without giving up the subscription.
	Pause(ctx context.Context, userID, subID string) (*model.Subscription, error)
	// Resume re-enables auto-renew. Rejected once the subscription is
	// cancelled: the user must re-subscribe.
	Resume(ctx context.Context, userID, subID string) (*model.Subscription, error)
	Cancel(ctx context.Context, userID, subID string) (*model.Subscription, error)
}

type subscriptionUC struct {
	subs      repository.SubscriptionRepository
	donations repository.DonationRepository
	campaigns repository.CampaignRepository
	gateways  Gateways
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	donations repository.DonationRepository,
	campaigns repository.CampaignRepository,
	gateways Gateways,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	ucLog := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{
		subs:      subs,
		donations: donations,
		campaigns: campaigns,
		gateways:  gateways,
		tm:        tm,
		log:       &ucLog,
	}
}

func (u *subscriptionUC) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*model.Subscription, error) {
	if req.PaymentToken == "" {
		// Fail at checkout rather than letting the billing engine cancel
		// the subscription after three doomed attempts.
		return nil, domain.ErrNoRecurringToken
	}
	provider := model.RouteProvider(req.CardNumber)
	gw, err := u.gateways.Pick(provider)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s, err := model.NewSubscription(
		uuid.NewString(),
		userID,
		req.PlanType,
		req.BillingCycle,
		req.Amount,
		req.Currency,
		req.CharityPercent,
		req.CharityCampaignID,
		provider,
		req.PaymentToken,
		now,
	)
	if err != nil {
		return nil, err
	}

	// First period is collected now; a declined charge means no
	// subscription exists at all.
	res, err := gw.CreateRecurringCharge(ctx, s.Amount, s.Currency, userID, req.PaymentToken)
	if err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Str("token", logging.Redact(req.PaymentToken, false)).Msg("checkout charge declined")
		return nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		return bookCharityShare(ctx, tx, u.donations, u.campaigns, s, res.TransactionID, now)
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().Str("subscription_id", s.ID).Str("user_id", userID).Str("cycle", string(s.BillingCycle)).Str("transaction_id", res.TransactionID).Msg("subscription created, first period collected")
	return s, nil
}

func (u *subscriptionUC) Pause(ctx context.Context, userID, subID string) (*model.Subscription, error) {
	return u.mutate(ctx, userID, subID, func(s *model.Subscription) error {
		if s.Terminal() {
			return domain.ErrSubscriptionCancelled
		}
		s.AutoRenew = false
		return nil
	})
}

func (u *subscriptionUC) Resume(ctx context.Context, userID, subID string) (*model.Subscription, error) {
	return u.mutate(ctx, userID, subID, func(s *model.Subscription) error {
		if s.Terminal() {
			return domain.ErrSubscriptionCancelled
		}
		s.AutoRenew = true
		s.Status = model.SubscriptionStatusActive
		return nil
	})
}

func (u *subscriptionUC) Cancel(ctx context.Context, userID, subID string) (*model.Subscription, error) {
	return u.mutate(ctx, userID, subID, func(s *model.Subscription) error {
		s.Status = model.SubscriptionStatusCancelled
		s.AutoRenew = false
		return nil
	})
}

// mutate re-reads the row, checks ownership and persists the change. The
// billing engine re-queries eligibility at run time, so a change here is
// visible to the next scheduled run without coordination.
func (u *subscriptionUC) mutate(ctx context.Context, userID, subID string, fn func(*model.Subscription) error) (*model.Subscription, error) {
	s, err := u.subs.FindByID(ctx, nil, subID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, domain.ErrNotOwner
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now()
	if err := u.subs.Save(ctx, nil, s); err != nil {
		return nil, err
	}
	return s, nil
}
