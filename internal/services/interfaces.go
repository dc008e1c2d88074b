package services

import (
	"context"
	"time"
)

// ConfirmPaymentCommand carries the caller-supplied inputs for one
// confirmation attempt.
type ConfirmPaymentCommand struct {
	OrderID string
	Token   string
}

// ConfirmPaymentResult is the outcome surfaced to the caller. Status is a
// short machine-readable string; Final tells the caller whether polling again
// can change the answer.
type ConfirmPaymentResult struct {
	OK     bool
	Status string
	Final  bool
}

// ConfirmationService reconciles an order against the payment provider and
// applies the paid transition when the provider reports completion.
type ConfirmationService interface {
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (ConfirmPaymentResult, error)
}

// OrderPaidMessage is published after an order durably transitions to paid.
type OrderPaidMessage struct {
	EventID           string    `json:"eventId"`
	OrderID           string    `json:"orderId"`
	MerchantPaymentID string    `json:"merchantPaymentId"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	CustomerEmail     string    `json:"customerEmail,omitempty"`
	PaidAt            time.Time `json:"paidAt"`
}

// PaidEventPublisher emits order-paid events for downstream consumers
// (receipts, fulfilment). Publishing is best effort relative to the order
// write: a publish failure never rolls back a paid order.
type PaidEventPublisher interface {
	PublishOrderPaid(ctx context.Context, msg OrderPaidMessage) error
}
