package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rastreador/premium-backend/internal/entitlement"
	"github.com/rastreador/premium-backend/internal/errs"
	"github.com/rastreador/premium-backend/internal/logging"
	"github.com/rastreador/premium-backend/internal/payments"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type createPaymentIntentRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency"`
	Phone    string `json:"phone"`
}

type createSubscriptionRequest struct {
	Phone string `json:"phone"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleCreatePaymentIntent creates a one-time charge and returns the client
// secret needed to complete it.
func HandleCreatePaymentIntent(issuer *payments.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		var req createPaymentIntentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid amount"})
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid amount"})
			return
		}

		result, err := issuer.CreatePaymentIntent(r.Context(), req.Amount, req.Currency, req.Phone)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandleCreateSubscription creates a customer and an incomplete subscription,
// returning the secret for the first invoice's payment.
func HandleCreateSubscription(issuer *payments.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		// Body is optional; phone may be absent.
		var req createSubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		result, err := issuer.CreateSubscription(r.Context(), req.Phone)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandlePremiumStatus reports the server-confirmed entitlement for a phone.
// Reads fail closed: a storage fault reads as not premium.
func HandlePremiumStatus(store *entitlement.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		phone := strings.TrimSpace(r.URL.Query().Get("phone"))
		if phone == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing phone"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"premium": store.Get(phone)})
	}
}

// HandleHealth is an unauthenticated liveness probe.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleReadyz reports readiness based on entitlement store connectivity.
func HandleReadyz(store *entitlement.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logging.RequestID(r.Context())
	var be *errs.BillingError
	if errors.As(err, &be) {
		log.Warn().
			Err(err).
			Str("request_id", requestID).
			Str("op", be.Op).
			Msg("Request failed")
		switch be.Type {
		case errs.ErrorTypeValidation:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: be.Err.Error()})
			return
		case errs.ErrorTypeAuth:
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		case errs.ErrorTypeUpstream, errs.ErrorTypeStorage:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: be.Err.Error()})
			return
		}
	}
	log.Error().Err(err).Str("request_id", requestID).Msg("unclassified handler error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Int("status", status).Msg("server: encode response")
	}
}
