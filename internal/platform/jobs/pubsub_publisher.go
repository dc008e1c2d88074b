package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/hinoki-market/api/internal/services"
)

// PubSubPaidEventPublisher publishes order-paid events to a Pub/Sub topic.
type PubSubPaidEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPaidEventPublisher constructs a Pub/Sub backed paid event publisher.
func NewPubSubPaidEventPublisher(topic *pubsub.Topic) (*PubSubPaidEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub paid event publisher: topic is required")
	}
	return &PubSubPaidEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderPaid enqueues an order-paid message on the configured topic and
// waits for the broker to acknowledge it.
func (p *PubSubPaidEventPublisher) PublishOrderPaid(ctx context.Context, msg services.OrderPaidMessage) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub paid event publisher: not initialised")
	}

	data, err := p.marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal order paid event: %w", err)
	}

	attrs := map[string]string{"eventType": "order.paid"}
	setAttr(attrs, "eventId", msg.EventID)
	setAttr(attrs, "orderId", msg.OrderID)
	setAttr(attrs, "merchantPaymentId", msg.MerchantPaymentID)
	if !msg.PaidAt.IsZero() {
		attrs["paidAt"] = msg.PaidAt.UTC().Format(time.RFC3339)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order paid event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

// Ensure interface compliance.
var _ services.PaidEventPublisher = (*PubSubPaidEventPublisher)(nil)
