package repositories

import (
	"context"
	"time"

	domain "github.com/hinoki-market/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository reads orders and applies the single conditional state transition
// the confirmation flow is allowed to perform.
type OrderRepository interface {
	// GetOrder loads the order by ID. A missing document surfaces as a
	// RepositoryError with IsNotFound.
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)

	// MarkOrderPaid transitions the order from pending to paid, setting paidAt.
	// The write is a compare-and-set on the current status: if the order is no
	// longer pending the call fails with a RepositoryError reporting IsConflict
	// and no fields are modified.
	MarkOrderPaid(ctx context.Context, orderID string, paidAt time.Time) (domain.Order, error)
}
