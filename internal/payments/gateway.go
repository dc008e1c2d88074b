package payments

import (
	"context"
	"errors"
)

// Status enumerates the normalised payment states derived from gateway responses.
type Status string

const (
	// StatusCompleted indicates the gateway reports the payment as captured.
	StatusCompleted Status = "completed"
	// StatusPending indicates the payment is still awaiting customer action.
	StatusPending Status = "pending"
	// StatusFailed indicates the gateway reports the attempt as failed or the
	// query itself was rejected by the gateway.
	StatusFailed Status = "failed"
	// StatusUnknown indicates the response could not be confidently classified.
	// It is distinct from StatusFailed: callers must not treat it as a negative
	// outcome.
	StatusUnknown Status = "unknown"
)

var (
	// ErrGatewayUnavailable indicates the gateway could not be reached or timed out.
	ErrGatewayUnavailable = errors.New("payments: gateway unavailable")
	// ErrMalformedResponse indicates the gateway answered without an extractable body.
	ErrMalformedResponse = errors.New("payments: malformed gateway response")
)

// ResultInfo carries the gateway's result envelope for a request.
type ResultInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	CodeID  string `json:"codeId"`
}

// PaymentData is one payment attempt as reported by the gateway.
type PaymentData struct {
	Status            string `json:"status"`
	MerchantPaymentID string `json:"merchantPaymentId"`
	AcceptedAt        int64  `json:"acceptedAt"`
}

// RawBody is the canonical response shape produced at the client boundary.
// The gateway delivers the data field either as a single object or as an
// array of attempts depending on environment; the client folds both into a
// slice so downstream code sees a single well-defined shape.
type RawBody struct {
	ResultInfo ResultInfo
	Data       []PaymentData
}

// Gateway queries the payment provider for the state of one payment attempt.
type Gateway interface {
	// GetPaymentDetails issues exactly one provider call for the given merchant
	// payment identifier and awaits it to completion. Transport failures map to
	// ErrGatewayUnavailable; responses without an extractable body map to
	// ErrMalformedResponse. A decodable body with a non-success result code is
	// not an error here: classification belongs to Normalize.
	GetPaymentDetails(ctx context.Context, merchantPaymentID string) (RawBody, error)
}
