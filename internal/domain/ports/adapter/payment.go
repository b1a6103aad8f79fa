package adapter

import (
	"context"

	"charity-billing/internal/domain/model"
)

// CreatePaymentResult is what a gateway returns for a redirect-based charge.
type CreatePaymentResult struct {
	ProviderID string // vendor-assigned payment reference
	PaymentURL string // where to redirect the donor
}

// ChargeResult is the outcome of a synchronous token-based charge; no
// redirect and no webhook round-trip is involved.
type ChargeResult struct {
	TransactionID string
	Raw           map[string]interface{} // vendor response snapshot
}

// WebhookEvent is a vendor callback already mapped onto the canonical
// payment status vocabulary. Each gateway owns the mapping from its own
// payload shape; nothing downstream sniffs vendor fields.
type WebhookEvent struct {
	Provider      model.Provider
	ProviderID    string // vendor payment reference to locate our Payment
	Status        model.PaymentStatus
	TransactionID string // vendor transaction id, set on success events
	Raw           map[string]interface{}
}

// PaymentGateway is the hex port for external card-payment vendors.
type PaymentGateway interface {
	Name() model.Provider

	// CreatePayment initiates a one-off redirect-based charge.
	CreatePayment(ctx context.Context, amount int64, currency, description, returnURL string, meta map[string]interface{}) (CreatePaymentResult, error)

	// CreateRecurringCharge charges a stored token synchronously.
	CreateRecurringCharge(ctx context.Context, amount int64, currency, accountID, token string) (ChargeResult, error)

	// VerifyWebhookSignature checks the vendor HMAC over the raw body.
	// Constant-time comparison; never errors, a bad signature is just false.
	VerifyWebhookSignature(rawBody []byte, signature string) bool

	// ParseWebhook decodes the vendor payload into a canonical event.
	ParseWebhook(rawBody []byte) (WebhookEvent, error)
}
