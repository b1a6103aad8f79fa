package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, donation_id, provider, amount, currency, status, provider_id, payment_url, meta, created_at, updated_at, paid_at`

func (r *paymentRepo) Save(ctx context.Context, qx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, donation_id, provider, amount, currency, status, provider_id, payment_url, meta, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  status=$6, provider_id=$7, payment_url=$8, meta=$9, updated_at=$11, paid_at=$12;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, p.ID, p.DonationID, p.Provider, p.Amount, p.Currency, p.Status, p.ProviderID, p.PaymentURL, p.Meta, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		// The partial unique index on (donation_id) WHERE status='pending'
		// is the atomic in-flight guard: a second pending insert for the
		// same donation trips 23505.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrPaymentInFlight
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, qx, q, id)
}

func (r *paymentRepo) FindByProviderRef(ctx context.Context, qx repository.Tx, provider model.Provider, providerID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider=$1 AND provider_id=$2 LIMIT 1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, qx, q, provider, providerID)
}

func (r *paymentRepo) FindOpenByDonation(ctx context.Context, qx repository.Tx, donationID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE donation_id=$1 AND status='pending' LIMIT 1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, qx, q, donationID)
}

func (r *paymentRepo) SetProviderRef(ctx context.Context, qx repository.Tx, id, providerID, paymentURL string) error {
	const q = `UPDATE payments SET provider_id=$2, payment_url=$3, updated_at=NOW() WHERE id=$1;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, id, providerID, paymentURL); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

// UpdateStatusIfPending is the terminal-state guard as a conditional write:
// two concurrently delivered events race on the WHERE clause, exactly one
// sees RowsAffected=1.
func (r *paymentRepo) UpdateStatusIfPending(ctx context.Context, qx repository.Tx, id string, status model.PaymentStatus, meta map[string]interface{}) (bool, error) {
	const q = `
UPDATE payments
SET status=$2,
    meta=COALESCE($3, meta),
    paid_at=CASE WHEN $2='succeeded' THEN NOW() ELSE paid_at END,
    updated_at=NOW()
WHERE id=$1 AND status='pending';`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return false, err
	}
	tag, err := ex.Exec(ctx, q, id, status, meta)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

// MarkStalePendingFailed fails abandoned pending payments and, in the same
// statement, the donations still waiting on them. Donations a webhook
// already completed are untouched.
func (r *paymentRepo) MarkStalePendingFailed(ctx context.Context, qx repository.Tx, cutoff time.Time) (int, error) {
	const q = `
WITH swept AS (
  UPDATE payments SET status='failed', updated_at=NOW()
  WHERE status='pending' AND created_at < $1
  RETURNING donation_id
), failed_donations AS (
  UPDATE donations SET payment_status='failed', updated_at=NOW()
  WHERE id IN (SELECT donation_id FROM swept) AND payment_status='pending'
)
SELECT COUNT(*) FROM swept;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, q, cutoff).Scan(&n); err != nil {
		return 0, domain.ErrOperationFailed
	}
	return n, nil
}

func (r *paymentRepo) scanOne(ctx context.Context, qx repository.Tx, q string, args ...interface{}) (*model.Payment, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	p := &model.Payment{}
	err = ex.QueryRow(ctx, q+";", args...).Scan(
		&p.ID, &p.DonationID, &p.Provider, &p.Amount, &p.Currency, &p.Status,
		&p.ProviderID, &p.PaymentURL, &p.Meta, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
