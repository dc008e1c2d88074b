package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hinoki-market/api/internal/platform/observability"
	"github.com/hinoki-market/api/internal/services"
)

const maxConfirmRequestBody = 4 * 1024

// Statuses the handler produces itself, before the service is consulted.
const (
	confirmStatusMissing = "MISSING"
	confirmStatusError   = "ERROR"
)

// PaymentHandlers exposes the payment confirmation endpoint called by the
// storefront after the customer returns from the provider.
type PaymentHandlers struct {
	confirmations services.ConfirmationService
}

// NewPaymentHandlers constructs payment handlers.
func NewPaymentHandlers(confirmations services.ConfirmationService) *PaymentHandlers {
	return &PaymentHandlers{confirmations: confirmations}
}

// Routes registers payment endpoints under the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments/confirm", h.confirmPayment)
}

type confirmPaymentRequest struct {
	OrderID string `json:"orderId"`
	Token   string `json:"token"`
}

type confirmPaymentResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
	Final  bool   `json:"final"`
}

// confirmPayment always answers 200 with a {ok, status, final} body: the
// storefront polls this endpoint and branches on status, never on the HTTP
// code.
func (h *PaymentHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The polling contract holds even when something below panics: the
	// storefront still gets the ERROR body rather than a 500.
	defer func() {
		if rec := recover(); rec != nil {
			observability.FromContext(ctx).Sugar().Errorw("payment confirmation panicked", "panic", rec)
			writeJSONResponse(w, http.StatusOK, confirmPaymentResponse{Status: confirmStatusError})
		}
	}()

	if h.confirmations == nil {
		writeJSONResponse(w, http.StatusOK, confirmPaymentResponse{Status: confirmStatusError})
		return
	}

	body, err := readLimitedBody(r, maxConfirmRequestBody)
	if err != nil {
		writeJSONResponse(w, http.StatusOK, confirmPaymentResponse{Status: confirmStatusMissing, Final: true})
		return
	}

	var req confirmPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONResponse(w, http.StatusOK, confirmPaymentResponse{Status: confirmStatusMissing, Final: true})
		return
	}

	orderID := strings.TrimSpace(req.OrderID)
	token := strings.TrimSpace(req.Token)
	if orderID == "" || token == "" {
		writeJSONResponse(w, http.StatusOK, confirmPaymentResponse{Status: confirmStatusMissing, Final: true})
		return
	}

	result, err := h.confirmations.ConfirmPayment(ctx, services.ConfirmPaymentCommand{
		OrderID: orderID,
		Token:   token,
	})
	if err != nil {
		observability.FromContext(ctx).Sugar().Errorw("payment confirmation failed",
			"order_id", orderID,
			"error", err,
		)
		writeJSONResponse(w, http.StatusOK, confirmPaymentResponse{Status: confirmStatusError})
		return
	}

	writeJSONResponse(w, http.StatusOK, confirmPaymentResponse{
		OK:     result.OK,
		Status: result.Status,
		Final:  result.Final,
	})
}
