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
	"charity-billing/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type InitiateRequest struct {
	DonationID  string
	Amount      int64
	Currency    string
	Description string
	ReturnURL   string
	CardNumber  string // optional; first six digits pick the provider
	Email       string
}

type InitiateResult struct {
	PaymentID  string
	Provider   model.Provider
	PaymentURL string
	Status     model.PaymentStatus
}

// StatusView is a payment with its linked donation snapshot.
type StatusView struct {
	Payment  *model.Payment
	Donation *model.Donation
}

type PaymentUseCase interface {
	// Initiate persists a pending payment, calls the routed provider and
	// returns the redirect URL. At most one non-terminal payment may exist
	// per donation; a concurrent retry gets ErrPaymentInFlight.
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Status(ctx context.Context, paymentID string) (*StatusView, error)
}

type paymentUC struct {
	payments  repository.PaymentRepository
	donations repository.DonationRepository
	gateways  Gateways
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, donations repository.DonationRepository, gateways Gateways, tm repository.TransactionManager, logger *zerolog.Logger) *paymentUC {
	ucLog := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{payments: payments, donations: donations, gateways: gateways, tm: tm, log: &ucLog}
}

func (u *paymentUC) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if req.DonationID == "" || req.Amount <= 0 || req.Currency == "" {
		return nil, domain.ErrInvalidArgument
	}

	provider := model.RouteProvider(req.CardNumber)
	gw, err := u.gateways.Pick(provider)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p := &model.Payment{
		ID:         uuid.NewString(),
		DonationID: req.DonationID,
		Provider:   provider,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     model.PaymentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// The pending row goes in BEFORE the provider call: a crash in between
	// leaves a recoverable pending record, never a charge we don't know
	// about. The partial unique index on (donation_id) WHERE
	// status='pending' backs the in-flight guard atomically; Save surfaces
	// it as ErrPaymentInFlight.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.donations.FindByID(ctx, tx, req.DonationID); err != nil {
			return err
		}
		if open, err := u.payments.FindOpenByDonation(ctx, tx, req.DonationID); err == nil && open != nil {
			return domain.ErrPaymentInFlight
		}
		return u.payments.Save(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]interface{}{"donation_id": req.DonationID}
	if req.Email != "" {
		meta["email"] = req.Email
	}
	res, err := gw.CreatePayment(ctx, req.Amount, req.Currency, req.Description, req.ReturnURL, meta)
	if err != nil {
		// No automatic retry here; the caller starts a new attempt once
		// this one is terminal.
		if _, markErr := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusFailed, nil); markErr != nil {
			u.log.Error().Err(markErr).Str("payment_id", p.ID).Msg("failed to mark payment failed")
		}
		metrics.IncPayment(string(provider), "failed")
		u.log.Warn().Err(err).Str("payment_id", p.ID).Str("provider", string(provider)).Msg("provider rejected payment")
		return nil, err
	}

	if err := u.payments.SetProviderRef(ctx, nil, p.ID, res.ProviderID, res.PaymentURL); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(provider), "pending")
	u.log.Info().Str("payment_id", p.ID).Str("provider", string(provider)).Str("donation_id", req.DonationID).Msg("payment initiated")

	return &InitiateResult{
		PaymentID:  p.ID,
		Provider:   provider,
		PaymentURL: res.PaymentURL,
		Status:     model.PaymentStatusPending,
	}, nil
}

func (u *paymentUC) Status(ctx context.Context, paymentID string) (*StatusView, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	d, err := u.donations.FindByID(ctx, nil, p.DonationID)
	if err != nil {
		return nil, err
	}
	return &StatusView{Payment: p, Donation: d}, nil
}
