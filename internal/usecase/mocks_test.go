//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/adapter"
	"charity-billing/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockTxManager runs the closure directly with a nil handle; the in-memory
// repositories below ignore qx.
type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// --- Payment repository ---

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment

	SaveFunc                  func(ctx context.Context, qx repository.Tx, p *model.Payment) error
	UpdateStatusIfPendingFunc func(ctx context.Context, qx repository.Tx, id string, status model.PaymentStatus, meta map[string]interface{}) (bool, error)
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[string]*model.Payment)}
}

func clonePayment(p *model.Payment) *model.Payment {
	cp := *p
	return &cp
}

func (m *mockPaymentRepo) Save(ctx context.Context, qx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, qx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Status == model.PaymentStatusPending {
		// Mirrors the partial unique index on (donation_id) WHERE pending.
		for _, other := range m.payments {
			if other.ID != p.ID && other.DonationID == p.DonationID && other.Status == model.PaymentStatusPending {
				return domain.ErrPaymentInFlight
			}
		}
	}
	m.payments[p.ID] = clonePayment(p)
	return nil
}

func (m *mockPaymentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *mockPaymentRepo) FindByProviderRef(_ context.Context, _ repository.Tx, provider model.Provider, providerID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.Provider == provider && p.ProviderID == providerID {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentRepo) FindOpenByDonation(_ context.Context, _ repository.Tx, donationID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.DonationID == donationID && !p.Status.Terminal() {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentRepo) SetProviderRef(_ context.Context, _ repository.Tx, id, providerID, paymentURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ProviderID = providerID
	p.PaymentURL = paymentURL
	return nil
}

func (m *mockPaymentRepo) UpdateStatusIfPending(ctx context.Context, qx repository.Tx, id string, status model.PaymentStatus, meta map[string]interface{}) (bool, error) {
	if m.UpdateStatusIfPendingFunc != nil {
		return m.UpdateStatusIfPendingFunc(ctx, qx, id, status, meta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if meta != nil {
		p.Meta = meta
	}
	p.UpdatedAt = time.Now()
	if status == model.PaymentStatusSucceeded {
		now := time.Now()
		p.PaidAt = &now
	}
	return true, nil
}

func (m *mockPaymentRepo) MarkStalePendingFailed(_ context.Context, _ repository.Tx, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = model.PaymentStatusFailed
			n++
		}
	}
	return n, nil
}

// --- Donation repository ---

type mockDonationRepo struct {
	mu        sync.Mutex
	donations map[string]*model.Donation

	updateStatusCalls int
}

func newMockDonationRepo() *mockDonationRepo {
	return &mockDonationRepo{donations: make(map[string]*model.Donation)}
}

func (m *mockDonationRepo) Save(_ context.Context, _ repository.Tx, d *model.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.donations[d.ID] = &cp
	return nil
}

func (m *mockDonationRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDonationRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.DonationStatus, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.PaymentStatus = status
	d.TransactionID = transactionID
	m.updateStatusCalls++
	return nil
}

// --- Campaign / partner collaborators ---

type mockCampaignRepo struct {
	mu                   sync.Mutex
	addDonationCalls     int
	addedAmount          int64
	checkCompletionCalls int
}

func (m *mockCampaignRepo) AddDonation(_ context.Context, _ repository.Tx, _ string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDonationCalls++
	m.addedAmount += amount
	return nil
}

func (m *mockCampaignRepo) CheckCompletion(_ context.Context, _ repository.Tx, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkCompletionCalls++
	return nil
}

type mockPartnerRepo struct {
	mu               sync.Mutex
	updateStatsCalls int
}

func (m *mockPartnerRepo) UpdateStats(_ context.Context, _ repository.Tx, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateStatsCalls++
	return nil
}

// --- Subscription repository ---

type mockSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription

	SaveFunc func(ctx context.Context, qx repository.Tx, s *model.Subscription) error
}

func newMockSubscriptionRepo() *mockSubscriptionRepo {
	return &mockSubscriptionRepo{subs: make(map[string]*model.Subscription)}
}

func (m *mockSubscriptionRepo) Save(ctx context.Context, qx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, qx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *mockSubscriptionRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubscriptionRepo) FindDue(_ context.Context, _ repository.Tx, now time.Time) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*model.Subscription
	for _, s := range m.subs {
		if s.Status == model.SubscriptionStatusActive && s.AutoRenew && !s.NextPayment.After(now) {
			cp := *s
			due = append(due, &cp)
		}
	}
	return due, nil
}

// --- Payment gateway ---

type mockGateway struct {
	name model.Provider

	CreatePaymentFunc         func(ctx context.Context, amount int64, currency, description, returnURL string, meta map[string]interface{}) (adapter.CreatePaymentResult, error)
	CreateRecurringChargeFunc func(ctx context.Context, amount int64, currency, accountID, token string) (adapter.ChargeResult, error)
	VerifyFunc                func(rawBody []byte, signature string) bool
	ParseFunc                 func(rawBody []byte) (adapter.WebhookEvent, error)
}

func (m *mockGateway) Name() model.Provider { return m.name }

func (m *mockGateway) CreatePayment(ctx context.Context, amount int64, currency, description, returnURL string, meta map[string]interface{}) (adapter.CreatePaymentResult, error) {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, amount, currency, description, returnURL, meta)
	}
	return adapter.CreatePaymentResult{ProviderID: "prov-ref-1", PaymentURL: "https://pay.example/session/prov-ref-1"}, nil
}

func (m *mockGateway) CreateRecurringCharge(ctx context.Context, amount int64, currency, accountID, token string) (adapter.ChargeResult, error) {
	if m.CreateRecurringChargeFunc != nil {
		return m.CreateRecurringChargeFunc(ctx, amount, currency, accountID, token)
	}
	return adapter.ChargeResult{TransactionID: "txn-1"}, nil
}

func (m *mockGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(rawBody, signature)
	}
	return true
}

func (m *mockGateway) ParseWebhook(rawBody []byte) (adapter.WebhookEvent, error) {
	if m.ParseFunc != nil {
		return m.ParseFunc(rawBody)
	}
	return adapter.WebhookEvent{}, domain.ErrInvalidArgument
}
