package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/usecase"
)

type Server struct {
	payments   usecase.PaymentUseCase
	subs       usecase.SubscriptionUseCase
	reconciler usecase.ReconcileUseCase
	auth       *AuthManager
	log        *zerolog.Logger
}

func NewServer(
	payments usecase.PaymentUseCase,
	subs usecase.SubscriptionUseCase,
	reconciler usecase.ReconcileUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		payments:   payments,
		subs:       subs,
		reconciler: reconciler,
		auth:       auth,
		log:        &srvLog,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/payments", func(r chi.Router) {
		r.Post("/initiate", s.handleInitiate)
		r.Get("/{id}/status", s.handleStatus)
		r.Post("/webhook/domestic", s.handleDomesticWebhook)
		r.Post("/webhook/international", s.handleInternationalWebhook)
	})

	r.Route("/subscriptions", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/checkout", s.handleCheckout)
		r.Patch("/{id}", s.handleSubscriptionAction)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses. Vendor rejections are
// reported with a provider-agnostic message; the vendor's own words stay
// in the logs.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var provErr *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, domain.ErrPaymentInFlight):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a payment for this donation is already in progress"})
	case errors.Is(err, domain.ErrSubscriptionCancelled):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "subscription is cancelled"})
	case errors.Is(err, domain.ErrNoRecurringToken):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "a payment token is required"})
	case errors.Is(err, domain.ErrProviderNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "payment provider unavailable"})
	case errors.As(err, &provErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "payment could not be processed"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// ----- payments -----

type initiateRequest struct {
	DonationID  string `json:"donationId"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
	CardNumber  string `json:"cardNumber,omitempty"`
	Email       string `json:"email,omitempty"`
}

type initiateResponse struct {
	PaymentID  string `json:"paymentId"`
	Provider   string `json:"provider"`
	PaymentURL string `json:"paymentUrl"`
	Status     string `json:"status"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	res, err := s.payments.Initiate(r.Context(), usecase.InitiateRequest{
		DonationID:  req.DonationID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		ReturnURL:   req.ReturnURL,
		CardNumber:  req.CardNumber,
		Email:       req.Email,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initiateResponse{
		PaymentID:  res.PaymentID,
		Provider:   string(res.Provider),
		PaymentURL: res.PaymentURL,
		Status:     string(res.Status),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.payments.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment":  view.Payment,
		"donation": view.Donation,
	})
}

// ----- webhooks -----

// handleDomesticWebhook acknowledges with bare "OK" text, the vendor's
// retry contract. The body is always 200: a dropped event must not cause
// a vendor retry storm. Only a genuine processing error returns 500 so
// the vendor redelivers (reconciliation is idempotent).
func (s *Server) handleDomesticWebhook(w http.ResponseWriter, r *http.Request) {
	s.handleWebhook(w, r, model.ProviderDomestic, r.Header.Get("X-Signature"), func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// handleInternationalWebhook acknowledges with {"code":0}.
func (s *Server) handleInternationalWebhook(w http.ResponseWriter, r *http.Request) {
	s.handleWebhook(w, r, model.ProviderInternational, r.Header.Get("X-Ecommpay-Signature"), func(w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, map[string]int{"code": 0})
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request, provider model.Provider, signature string, ack func(http.ResponseWriter)) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	err = s.reconciler.Process(r.Context(), provider, body, signature)
	switch {
	case err == nil:
		ack(w)
	case errors.Is(err, domain.ErrSignatureInvalid),
		errors.Is(err, domain.ErrInvalidArgument):
		// Dropped, still acknowledged.
		ack(w)
	default:
		http.Error(w, "processing failed", http.StatusInternalServerError)
	}
}

// ----- subscriptions -----

type checkoutRequest struct {
	PlanType       string `json:"planType"`
	BillingCycle   string `json:"billingCycle"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	CharityPercent int    `json:"charityPercent"`
	CampaignID     string `json:"campaignId,omitempty"`
	PaymentToken   string `json:"paymentToken,omitempty"`
	CardNumber     string `json:"cardNumber,omitempty"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	sub, err := s.subs.Checkout(r.Context(), UserID(r.Context()), usecase.CheckoutRequest{
		PlanType:          req.PlanType,
		BillingCycle:      model.BillingCycle(req.BillingCycle),
		Amount:            req.Amount,
		Currency:          req.Currency,
		CharityPercent:    req.CharityPercent,
		CharityCampaignID: req.CampaignID,
		PaymentToken:      req.PaymentToken,
		CardNumber:        req.CardNumber,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type subscriptionActionRequest struct {
	Action string `json:"action"` // pause | resume | cancel
}

func (s *Server) handleSubscriptionAction(w http.ResponseWriter, r *http.Request) {
	var req subscriptionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	subID := chi.URLParam(r, "id")
	userID := UserID(r.Context())

	var (
		sub interface{}
		err error
	)
	switch req.Action {
	case "pause":
		sub, err = s.subs.Pause(r.Context(), userID, subID)
	case "resume":
		sub, err = s.subs.Resume(r.Context(), userID, subID)
	case "cancel":
		sub, err = s.subs.Cancel(r.Context(), userID, subID)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown action"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
