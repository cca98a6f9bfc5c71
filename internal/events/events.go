// Package events publishes notifications about committed ledger operations.
// Publishing is best effort and never feeds back into the ledger.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	UserRegistered     Type = "user.registered"
	CouponPurchased    Type = "coupon.purchased"
	OrderCreated       Type = "order.created"
	OrderPaid          Type = "order.paid"
	OrderStatusChanged Type = "order.status_changed"
)

type Event struct {
	ID        string         `json:"event_id"`
	Type      Type           `json:"type"`
	UserID    int64          `json:"user_id"`
	OrderID   string         `json:"order_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func New(t Type, userID int64, orderID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    userID,
		OrderID:   orderID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Key groups an event with the others of the same order, or of the same
// user when there is no order.
func (e Event) Key() string {
	if e.OrderID != "" {
		return "order:" + e.OrderID
	}
	return "user:" + strconv.FormatInt(e.UserID, 10)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
