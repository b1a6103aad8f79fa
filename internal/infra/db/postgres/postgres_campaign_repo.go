package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/ports/repository"
)

var (
	_ repository.CampaignRepository = (*campaignRepo)(nil)
	_ repository.PartnerRepository  = (*partnerRepo)(nil)
)

// campaignRepo and partnerRepo cover only what the payment core consumes:
// total/count bumps after a reconciled success. Full campaign CRUD lives
// in the campaign subsystem.
type campaignRepo struct{ pool *pgxpool.Pool }

func NewCampaignRepo(pool *pgxpool.Pool) *campaignRepo {
	return &campaignRepo{pool: pool}
}

func (r *campaignRepo) AddDonation(ctx context.Context, qx repository.Tx, campaignID string, amount int64) error {
	const q = `UPDATE campaigns SET collected_amount = collected_amount + $2, donations_count = donations_count + 1, updated_at = NOW() WHERE id=$1;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, campaignID, amount); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *campaignRepo) CheckCompletion(ctx context.Context, qx repository.Tx, campaignID string) error {
	const q = `UPDATE campaigns SET status='completed', updated_at=NOW() WHERE id=$1 AND status='active' AND collected_amount >= goal_amount;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, campaignID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

type partnerRepo struct{ pool *pgxpool.Pool }

func NewPartnerRepo(pool *pgxpool.Pool) *partnerRepo {
	return &partnerRepo{pool: pool}
}

func (r *partnerRepo) UpdateStats(ctx context.Context, qx repository.Tx, partnerID string) error {
	const q = `
UPDATE partners p SET
  total_raised = (SELECT COALESCE(SUM(d.amount),0) FROM donations d JOIN campaigns c ON d.campaign_id=c.id WHERE c.partner_id=p.id AND d.payment_status='completed'),
  updated_at = NOW()
WHERE p.id=$1;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, partnerID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
