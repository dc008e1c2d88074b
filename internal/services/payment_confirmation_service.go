package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hinoki-market/api/internal/domain"
	"github.com/hinoki-market/api/internal/payments"
	"github.com/hinoki-market/api/internal/repositories"
)

// Caller-facing status strings. The response always carries one of these or
// the raw provider status verbatim.
const (
	ConfirmStatusCompleted     = "COMPLETED"
	ConfirmStatusAlreadyPaid   = "ALREADY_PAID"
	ConfirmStatusOrderNotFound = "ORDER_NOT_FOUND"
	ConfirmStatusBadToken      = "BAD_TOKEN"
	ConfirmStatusNoPaymentID   = "NO_MPID"
	ConfirmStatusError         = "ERROR"
	confirmStatusUnknown       = "UNKNOWN"
)

const defaultGatewayTimeout = 5 * time.Second

// PaymentConfirmationServiceDeps wires the dependencies required by the
// confirmation service.
type PaymentConfirmationServiceDeps struct {
	Orders    repositories.OrderRepository
	Gateway   payments.Gateway
	Publisher PaidEventPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)

	// GatewayTimeout bounds a single provider call. Zero selects the default.
	GatewayTimeout time.Duration
}

type paymentConfirmationService struct {
	orders         repositories.OrderRepository
	gateway        payments.Gateway
	publisher      PaidEventPublisher
	now            func() time.Time
	logger         func(ctx context.Context, event string, fields map[string]any)
	gatewayTimeout time.Duration
	eventID        func() string
}

// NewPaymentConfirmationService constructs a ConfirmationService validating
// required dependencies.
func NewPaymentConfirmationService(deps PaymentConfirmationServiceDeps) (ConfirmationService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment confirmation service: order repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment confirmation service: gateway is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	timeout := deps.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	return &paymentConfirmationService{
		orders:    deps.Orders,
		gateway:   deps.Gateway,
		publisher: deps.Publisher,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:         logger,
		gatewayTimeout: timeout,
		eventID: func() string {
			return ulid.Make().String()
		},
	}, nil
}

// ConfirmPayment loads the order, authenticates the caller's return token,
// reconciles the order against the provider, and applies the pending to paid
// transition when the provider reports completion. The method never returns a
// transport-shaped error for business outcomes: every path yields a result
// the handler can serialise as-is.
func (s *paymentConfirmationService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (ConfirmPaymentResult, error) {
	if s == nil || s.orders == nil || s.gateway == nil {
		return errorResult(), nil
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	token := strings.TrimSpace(cmd.Token)
	if orderID == "" {
		return ConfirmPaymentResult{OK: false, Status: ConfirmStatusOrderNotFound, Final: true}, nil
	}
	if token == "" {
		return ConfirmPaymentResult{OK: false, Status: ConfirmStatusBadToken, Final: true}, nil
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return ConfirmPaymentResult{OK: false, Status: ConfirmStatusOrderNotFound, Final: true}, nil
		}
		s.logger(ctx, "payment_confirmation.load_failed", map[string]any{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return errorResult(), nil
	}

	if subtle.ConstantTimeCompare([]byte(order.ReturnToken), []byte(token)) != 1 {
		return ConfirmPaymentResult{OK: false, Status: ConfirmStatusBadToken, Final: true}, nil
	}

	// Short circuit before touching the provider: a paid order stays paid.
	if order.Status == domain.OrderStatusPaid {
		return ConfirmPaymentResult{OK: true, Status: ConfirmStatusAlreadyPaid, Final: true}, nil
	}

	if order.MerchantPaymentID == "" {
		return ConfirmPaymentResult{OK: false, Status: ConfirmStatusNoPaymentID, Final: true}, nil
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	body, err := s.gateway.GetPaymentDetails(gatewayCtx, order.MerchantPaymentID)
	if err != nil {
		s.logger(ctx, "payment_confirmation.gateway_failed", map[string]any{
			"order_id":            order.ID,
			"merchant_payment_id": order.MerchantPaymentID,
			"error":               err.Error(),
		})
		return errorResult(), nil
	}

	status, raw := payments.Normalize(body)
	switch status {
	case payments.StatusCompleted:
		return s.applyPaid(ctx, order), nil
	case payments.StatusFailed:
		return ConfirmPaymentResult{OK: false, Status: rawOrUnknown(raw), Final: false}, nil
	case payments.StatusPending, payments.StatusUnknown:
		return ConfirmPaymentResult{OK: false, Status: rawOrUnknown(raw), Final: false}, nil
	default:
		return ConfirmPaymentResult{OK: false, Status: rawOrUnknown(raw), Final: false}, nil
	}
}

// applyPaid attempts the pending to paid transition. Losing the compare-and-set
// to a concurrent confirmation is a success from the caller's point of view as
// long as the order ended up paid.
func (s *paymentConfirmationService) applyPaid(ctx context.Context, order domain.Order) ConfirmPaymentResult {
	paidAt := s.now()
	saved, err := s.orders.MarkOrderPaid(ctx, order.ID, paidAt)
	if err != nil {
		if isConflict(err) {
			current, readErr := s.orders.GetOrder(ctx, order.ID)
			if readErr == nil && current.Status == domain.OrderStatusPaid {
				return ConfirmPaymentResult{OK: true, Status: ConfirmStatusAlreadyPaid, Final: true}
			}
			s.logger(ctx, "payment_confirmation.conflict_unresolved", map[string]any{
				"order_id": order.ID,
			})
			return errorResult()
		}
		s.logger(ctx, "payment_confirmation.mark_paid_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return errorResult()
	}

	s.publishPaid(ctx, saved)
	return ConfirmPaymentResult{OK: true, Status: ConfirmStatusCompleted, Final: true}
}

// publishPaid emits the order-paid event after the durable write. Failures
// are logged and swallowed: the paid state is already committed.
func (s *paymentConfirmationService) publishPaid(ctx context.Context, order domain.Order) {
	if s.publisher == nil {
		return
	}

	paidAt := s.now()
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}

	msg := OrderPaidMessage{
		EventID:           s.eventID(),
		OrderID:           order.ID,
		MerchantPaymentID: order.MerchantPaymentID,
		Amount:            order.Amount,
		Currency:          order.Currency,
		CustomerEmail:     order.CustomerEmail,
		PaidAt:            paidAt,
	}
	if err := s.publisher.PublishOrderPaid(ctx, msg); err != nil {
		s.logger(ctx, "payment_confirmation.publish_failed", map[string]any{
			"order_id": order.ID,
			"event_id": msg.EventID,
			"error":    err.Error(),
		})
	}
}

func errorResult() ConfirmPaymentResult {
	return ConfirmPaymentResult{OK: false, Status: ConfirmStatusError, Final: false}
}

func rawOrUnknown(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return confirmStatusUnknown
	}
	return raw
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
