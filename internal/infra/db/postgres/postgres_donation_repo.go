package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/repository"
)

var _ repository.DonationRepository = (*donationRepo)(nil)

type donationRepo struct{ pool *pgxpool.Pool }

func NewDonationRepo(pool *pgxpool.Pool) *donationRepo {
	return &donationRepo{pool: pool}
}

const donationColumns = `id, campaign_id, partner_id, user_id, amount, currency, payment_status, transaction_id, created_at, updated_at`

func (r *donationRepo) Save(ctx context.Context, qx repository.Tx, d *model.Donation) error {
	const q = `
INSERT INTO donations (
  id, campaign_id, partner_id, user_id, amount, currency, payment_status, transaction_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
) ON CONFLICT (id) DO UPDATE SET
  payment_status=$7, transaction_id=$8, updated_at=$10;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, d.ID, d.CampaignID, d.PartnerID, d.UserID, d.Amount, d.Currency, d.PaymentStatus, d.TransactionID, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *donationRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Donation, error) {
	q := `SELECT ` + donationColumns + ` FROM donations WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	d := &model.Donation{}
	err = ex.QueryRow(ctx, q+";", id).Scan(
		&d.ID, &d.CampaignID, &d.PartnerID, &d.UserID, &d.Amount, &d.Currency,
		&d.PaymentStatus, &d.TransactionID, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return d, nil
}

func (r *donationRepo) UpdateStatus(ctx context.Context, qx repository.Tx, id string, status model.DonationStatus, transactionID string) error {
	const q = `UPDATE donations SET payment_status=$2, transaction_id=$3, updated_at=NOW() WHERE id=$1;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, id, status, transactionID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
