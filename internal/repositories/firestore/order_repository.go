package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/hinoki-market/api/internal/domain"
	pfirestore "github.com/hinoki-market/api/internal/platform/firestore"
	"github.com/hinoki-market/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders in Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// GetOrder loads a single order by ID.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}
	return decodeOrderDocument(snap)
}

// MarkOrderPaid transitions the order from pending to paid inside a transaction.
// The status is re-read under the transaction so that concurrent confirmations
// cannot both apply the transition; a lost race surfaces as a conflict.
func (r *OrderRepository) MarkOrderPaid(ctx context.Context, orderID string, paidAt time.Time) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	paidAt = paidAt.UTC()
	var saved domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}

		if domain.OrderStatus(doc.Status) != domain.OrderStatusPending {
			return status.Errorf(codes.FailedPrecondition, "order %s is %s, not pending", id, doc.Status)
		}

		if err := tx.Update(docRef, []firestore.Update{
			{Path: "status", Value: string(domain.OrderStatusPaid)},
			{Path: "paidAt", Value: paidAt},
			{Path: "updatedAt", Value: paidAt},
		}); err != nil {
			return err
		}

		doc.Status = string(domain.OrderStatusPaid)
		doc.PaidAt = &paidAt
		doc.UpdatedAt = paidAt
		saved = doc.toDomain(docRef.ID)
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.mark_paid", err)
	}
	return saved, nil
}

func (r *OrderRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(orderCollection), nil
}

func decodeOrderDocument(snapshot *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snapshot.Ref.ID, err)
	}
	return doc.toDomain(snapshot.Ref.ID), nil
}

type orderDocument struct {
	Status            string     `firestore:"status"`
	MerchantPaymentID string     `firestore:"merchantPaymentId,omitempty"`
	ReturnToken       string     `firestore:"returnToken"`
	Amount            int64      `firestore:"amount"`
	Currency          string     `firestore:"currency"`
	CustomerEmail     string     `firestore:"customerEmail,omitempty"`
	CreatedAt         time.Time  `firestore:"createdAt"`
	UpdatedAt         time.Time  `firestore:"updatedAt"`
	PaidAt            *time.Time `firestore:"paidAt,omitempty"`
}

func (d orderDocument) toDomain(id string) domain.Order {
	return domain.Order{
		ID:                id,
		Status:            domain.OrderStatus(strings.TrimSpace(d.Status)),
		MerchantPaymentID: strings.TrimSpace(d.MerchantPaymentID),
		ReturnToken:       d.ReturnToken,
		Amount:            d.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(d.Currency)),
		CustomerEmail:     strings.TrimSpace(d.CustomerEmail),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		PaidAt:            d.PaidAt,
	}
}

// Ensure interface compliance.
var _ repositories.OrderRepository = (*OrderRepository)(nil)
