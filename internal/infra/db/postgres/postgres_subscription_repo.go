package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, plan_type, billing_cycle, amount, currency, charity_percent, charity_amount, charity_campaign_id, provider, provider_token, status, auto_renew, charge_attempts, max_charge_attempts, last_payment, next_payment, end_date, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, qx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, plan_type, billing_cycle, amount, currency, charity_percent, charity_amount, charity_campaign_id, provider, provider_token, status, auto_renew, charge_attempts, max_charge_attempts, last_payment, next_payment, end_date, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
) ON CONFLICT (id) DO UPDATE SET
  status=$12, auto_renew=$13, charge_attempts=$14, last_payment=$16, next_payment=$17, end_date=$18, updated_at=$20;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		s.ID, s.UserID, s.PlanType, s.BillingCycle, s.Amount, s.Currency,
		s.CharityPercent, s.CharityAmount, s.CharityCampaignID, s.Provider, s.ProviderToken,
		s.Status, s.AutoRenew, s.ChargeAttempts, s.MaxChargeAttempts,
		s.LastPayment, s.NextPayment, s.EndDate, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	return scanSubscription(ex.QueryRow(ctx, q+";", id))
}

func (r *subscriptionRepo) FindDue(ctx context.Context, qx repository.Tx, now time.Time) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE status='active' AND auto_renew AND next_payment <= $1
ORDER BY next_payment;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, now)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.PlanType, &s.BillingCycle, &s.Amount, &s.Currency,
		&s.CharityPercent, &s.CharityAmount, &s.CharityCampaignID, &s.Provider, &s.ProviderToken,
		&s.Status, &s.AutoRenew, &s.ChargeAttempts, &s.MaxChargeAttempts,
		&s.LastPayment, &s.NextPayment, &s.EndDate, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
