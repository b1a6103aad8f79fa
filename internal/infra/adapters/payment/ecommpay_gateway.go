package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*EcommpayGateway)(nil)

// EcommpayGateway is the international-card provider. Everything is JSON;
// webhooks must be acknowledged with {"code":0}.
type EcommpayGateway struct {
	projectID string
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewEcommpayGateway(projectID, secretKey string, timeout time.Duration) *EcommpayGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EcommpayGateway{
		projectID: projectID,
		secretKey: secretKey,
		baseURL:   "https://api.ecommpay.com/v2",
		client:    &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the vendor endpoint (sandbox, tests).
func (g *EcommpayGateway) SetBaseURL(u string) { g.baseURL = strings.TrimRight(u, "/") }

func (g *EcommpayGateway) Name() model.Provider { return model.ProviderInternational }

func (g *EcommpayGateway) configured() bool { return g.projectID != "" && g.secretKey != "" }

func (g *EcommpayGateway) CreatePayment(ctx context.Context, amount int64, currency, description, returnURL string, meta map[string]interface{}) (adapter.CreatePaymentResult, error) {
	if !g.configured() {
		return adapter.CreatePaymentResult{}, domain.ErrProviderNotConfigured
	}
	payload := map[string]interface{}{
		"project_id":  g.projectID,
		"amount":      amount,
		"currency":    currency,
		"description": description,
		"return_url":  returnURL,
	}
	if meta != nil {
		payload["metadata"] = meta
	}

	var out struct {
		Payment struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"payment"`
		Status  string `json:"status"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := g.postJSON(ctx, "/payment/create", payload, &out); err != nil {
		return adapter.CreatePaymentResult{}, err
	}
	if out.Status != "success" || out.Payment.ID == "" {
		return adapter.CreatePaymentResult{}, &domain.ProviderError{
			Provider: string(g.Name()), Code: strconv.Itoa(out.Code), Message: out.Message,
		}
	}
	return adapter.CreatePaymentResult{ProviderID: out.Payment.ID, PaymentURL: out.Payment.URL}, nil
}

func (g *EcommpayGateway) CreateRecurringCharge(ctx context.Context, amount int64, currency, accountID, token string) (adapter.ChargeResult, error) {
	if !g.configured() {
		return adapter.ChargeResult{}, domain.ErrProviderNotConfigured
	}
	payload := map[string]interface{}{
		"project_id":  g.projectID,
		"amount":      amount,
		"currency":    currency,
		"customer_id": accountID,
		"token":       token,
	}

	var out struct {
		Payment struct {
			ID            string `json:"id"`
			TransactionID string `json:"transaction_id"`
		} `json:"payment"`
		Status  string `json:"status"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := g.postJSON(ctx, "/payment/recurring", payload, &out); err != nil {
		return adapter.ChargeResult{}, err
	}
	if out.Status != "success" {
		return adapter.ChargeResult{}, &domain.ProviderError{
			Provider: string(g.Name()), Code: strconv.Itoa(out.Code), Message: out.Message,
		}
	}
	txn := out.Payment.TransactionID
	if txn == "" {
		txn = out.Payment.ID
	}
	return adapter.ChargeResult{
		TransactionID: txn,
		Raw:           map[string]interface{}{"payment_id": out.Payment.ID, "transaction_id": txn},
	}, nil
}

// VerifyWebhookSignature checks base64(HMAC-SHA256(body, secret)).
func (g *EcommpayGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if !g.configured() || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.secretKey))
	mac.Write(rawBody)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

// ParseWebhook decodes the vendor's JSON notification and maps its status
// vocabulary onto the canonical set.
func (g *EcommpayGateway) ParseWebhook(rawBody []byte) (adapter.WebhookEvent, error) {
	var body struct {
		Payment struct {
			ID            string `json:"id"`
			Status        string `json:"status"`
			TransactionID string `json:"transaction_id"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return adapter.WebhookEvent{}, fmt.Errorf("ecommpay webhook: %w", err)
	}
	if body.Payment.ID == "" {
		return adapter.WebhookEvent{}, domain.ErrInvalidArgument
	}

	var status model.PaymentStatus
	switch body.Payment.Status {
	case "success":
		status = model.PaymentStatusSucceeded
	case "decline", "expired":
		status = model.PaymentStatusFailed
	case "cancelled", "refunded":
		status = model.PaymentStatusCancelled
	default:
		status = model.PaymentStatusPending
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(rawBody, &raw)
	return adapter.WebhookEvent{
		Provider:      g.Name(),
		ProviderID:    body.Payment.ID,
		Status:        status,
		TransactionID: body.Payment.TransactionID,
		Raw:           raw,
	}, nil
}

func (g *EcommpayGateway) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(rb))
		var ve struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(rb, &ve) == nil && ve.Message != "" {
			return &domain.ProviderError{Provider: string(g.Name()), Code: strconv.Itoa(ve.Code), Message: ve.Message}
		}
		return &domain.ProviderError{Provider: string(g.Name()), Code: strconv.Itoa(resp.StatusCode), Message: msg}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
