package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/repository"
	"charity-billing/internal/infra/metrics"
	red "charity-billing/internal/infra/redis"
)

var _ repository.PaymentRepository = (*paymentRepoCacheDecorator)(nil)

// paymentRepoCacheDecorator caches FindByID with a short TTL for the
// status-polling read path. Every write invalidates, and the guard write
// (UpdateStatusIfPending) is always passed straight through — correctness
// lives in the database, the cache only shaves reads.
type paymentRepoCacheDecorator struct {
	inner repository.PaymentRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPaymentRepoCacheDecorator(inner repository.PaymentRepository, cache red.RedisClient, ttl time.Duration) repository.PaymentRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &paymentRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func paymentKey(id string) string { return fmt.Sprintf("payment:%s", id) }

func (d *paymentRepoCacheDecorator) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Payment, error) {
	if qx != nil {
		// Transactional reads (FOR UPDATE) must hit the database.
		return d.inner.FindByID(ctx, qx, id)
	}
	val, err := d.cache.Get(ctx, paymentKey(id))
	if err == nil {
		var p model.Payment
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("payment", "hit")
			return &p, nil
		}
	} else if err != redis.Nil {
		// Redis being down degrades to plain DB reads.
	}

	metrics.IncCacheRequest("payment", "miss")
	p, err := d.inner.FindByID(ctx, qx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, paymentKey(id), b, d.ttl)
	}
	return p, nil
}

func (d *paymentRepoCacheDecorator) Save(ctx context.Context, qx repository.Tx, p *model.Payment) error {
	_ = d.cache.Del(ctx, paymentKey(p.ID))
	return d.inner.Save(ctx, qx, p)
}

func (d *paymentRepoCacheDecorator) FindByProviderRef(ctx context.Context, qx repository.Tx, provider model.Provider, providerID string) (*model.Payment, error) {
	return d.inner.FindByProviderRef(ctx, qx, provider, providerID)
}

func (d *paymentRepoCacheDecorator) FindOpenByDonation(ctx context.Context, qx repository.Tx, donationID string) (*model.Payment, error) {
	return d.inner.FindOpenByDonation(ctx, qx, donationID)
}

func (d *paymentRepoCacheDecorator) SetProviderRef(ctx context.Context, qx repository.Tx, id, providerID, paymentURL string) error {
	_ = d.cache.Del(ctx, paymentKey(id))
	return d.inner.SetProviderRef(ctx, qx, id, providerID, paymentURL)
}

func (d *paymentRepoCacheDecorator) UpdateStatusIfPending(ctx context.Context, qx repository.Tx, id string, status model.PaymentStatus, meta map[string]interface{}) (bool, error) {
	_ = d.cache.Del(ctx, paymentKey(id))
	return d.inner.UpdateStatusIfPending(ctx, qx, id, status, meta)
}

func (d *paymentRepoCacheDecorator) MarkStalePendingFailed(ctx context.Context, qx repository.Tx, cutoff time.Time) (int, error) {
	// Swept rows age out of the cache within the TTL.
	return d.inner.MarkStalePendingFailed(ctx, qx, cutoff)
}
