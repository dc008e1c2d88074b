package domain

import "time"

// OrderStatus enumerates the lifecycle states of a persisted order.
type OrderStatus string

const (
	// OrderStatusPending indicates payment has not been confirmed yet.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates the payment was confirmed; terminal.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusFailed indicates the order was closed without payment; terminal.
	OrderStatusFailed OrderStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// Order is a purchase record created by the checkout flow. The confirmation
// core only reads it and, at most once, transitions it to paid.
type Order struct {
	ID                string
	Status            OrderStatus
	MerchantPaymentID string
	ReturnToken       string
	Amount            int64
	Currency          string
	CustomerEmail     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PaidAt            *time.Time
}
