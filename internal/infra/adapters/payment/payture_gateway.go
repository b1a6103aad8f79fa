package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PaytureGateway)(nil)

// PaytureGateway is the domestic-card provider. Its API is form-encoded;
// webhooks arrive form-encoded too and must be acknowledged with bare "OK".
type PaytureGateway struct {
	merchantID string
	secretKey  string
	baseURL    string
	client     *http.Client
}

func NewPaytureGateway(merchantID, secretKey string, timeout time.Duration) *PaytureGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaytureGateway{
		merchantID: merchantID,
		secretKey:  secretKey,
		baseURL:    "https://secure.payture.com/apim",
		client:     &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the vendor endpoint (sandbox, tests).
func (g *PaytureGateway) SetBaseURL(u string) { g.baseURL = strings.TrimRight(u, "/") }

func (g *PaytureGateway) Name() model.Provider { return model.ProviderDomestic }

func (g *PaytureGateway) configured() bool { return g.merchantID != "" && g.secretKey != "" }

func (g *PaytureGateway) CreatePayment(ctx context.Context, amount int64, currency, description, returnURL string, meta map[string]interface{}) (adapter.CreatePaymentResult, error) {
	if !g.configured() {
		return adapter.CreatePaymentResult{}, domain.ErrProviderNotConfigured
	}
	form := url.Values{}
	form.Set("Key", g.merchantID)
	form.Set("Amount", strconv.FormatInt(amount, 10))
	form.Set("Currency", currency)
	form.Set("Description", description)
	form.Set("Url", returnURL)
	if meta != nil {
		if id, ok := meta["donation_id"].(string); ok {
			form.Set("OrderId", id)
		}
	}

	var out struct {
		Success   bool   `json:"Success"`
		SessionID string `json:"SessionId"`
		ErrCode   string `json:"ErrCode"`
		ErrMsg    string `json:"ErrMessage"`
	}
	if err := g.postForm(ctx, "/Init", form, &out); err != nil {
		return adapter.CreatePaymentResult{}, err
	}
	if !out.Success || out.SessionID == "" {
		return adapter.CreatePaymentResult{}, &domain.ProviderError{
			Provider: string(g.Name()), Code: out.ErrCode, Message: out.ErrMsg,
		}
	}
	return adapter.CreatePaymentResult{
		ProviderID: out.SessionID,
		PaymentURL: fmt.Sprintf("%s/Pay?SessionId=%s", g.baseURL, out.SessionID),
	}, nil
}

func (g *PaytureGateway) CreateRecurringCharge(ctx context.Context, amount int64, currency, accountID, token string) (adapter.ChargeResult, error) {
	if !g.configured() {
		return adapter.ChargeResult{}, domain.ErrProviderNotConfigured
	}
	form := url.Values{}
	form.Set("Key", g.merchantID)
	form.Set("Amount", strconv.FormatInt(amount, 10))
	form.Set("Currency", currency)
	form.Set("AccountId", accountID)
	form.Set("Token", token)

	var out struct {
		Success       bool   `json:"Success"`
		TransactionID string `json:"TransactionId"`
		ErrCode       string `json:"ErrCode"`
		ErrMsg        string `json:"ErrMessage"`
	}
	if err := g.postForm(ctx, "/ChargeToken", form, &out); err != nil {
		return adapter.ChargeResult{}, err
	}
	if !out.Success || out.TransactionID == "" {
		return adapter.ChargeResult{}, &domain.ProviderError{
			Provider: string(g.Name()), Code: out.ErrCode, Message: out.ErrMsg,
		}
	}
	return adapter.ChargeResult{
		TransactionID: out.TransactionID,
		Raw:           map[string]interface{}{"transaction_id": out.TransactionID},
	}, nil
}

// VerifyWebhookSignature checks hex(HMAC-SHA256(body, secret)).
func (g *PaytureGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if !g.configured() || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.secretKey))
	mac.Write(rawBody)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}

// ParseWebhook decodes the vendor's form-encoded notification. Payture's
// status vocabulary is mapped here, eagerly, so nothing downstream ever
// sees vendor terms.
func (g *PaytureGateway) ParseWebhook(rawBody []byte) (adapter.WebhookEvent, error) {
	vals, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return adapter.WebhookEvent{}, fmt.Errorf("payture webhook: %w", err)
	}
	sessionID := vals.Get("SessionId")
	if sessionID == "" {
		return adapter.WebhookEvent{}, domain.ErrInvalidArgument
	}

	var status model.PaymentStatus
	switch vals.Get("Status") {
	case "Charged":
		status = model.PaymentStatusSucceeded
	case "Rejected":
		status = model.PaymentStatusFailed
	case "Voided", "Refunded":
		status = model.PaymentStatusCancelled
	default:
		status = model.PaymentStatusPending
	}

	raw := make(map[string]interface{}, len(vals))
	for k := range vals {
		raw[k] = vals.Get(k)
	}
	return adapter.WebhookEvent{
		Provider:      g.Name(),
		ProviderID:    sessionID,
		Status:        status,
		TransactionID: vals.Get("TransactionId"),
		Raw:           raw,
	}, nil
}

func (g *PaytureGateway) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.ProviderError{
			Provider: string(g.Name()),
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  strings.TrimSpace(string(b)),
		}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
