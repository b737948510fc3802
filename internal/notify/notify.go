package notify

import (
	"context"
	"time"
)

// Event types observable by external consumers. Events are emitted only
// after the underlying transaction has committed.
const (
	EventOrderPlaced    = "order_placed"
	EventOrderCancelled = "order_cancelled"
	EventSaleStarted    = "sale_started"
	EventSaleEnded      = "sale_ended"
)

type Event struct {
	Type            string    `json:"type"`
	OrderID         int64     `json:"order_id,omitempty"`
	AmountCents     int64     `json:"amount_cents,omitempty"`
	DiscountPercent int64     `json:"discount_percent,omitempty"`
	At              time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}
