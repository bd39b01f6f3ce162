package events

import (
	"context"
	"strconv"
	"time"

	"github.com/Skotchmaster/bookstore/pkg/logging"
)

const (
	TypeOrderCreated       = "order_created"
	TypeCheckoutCompleted  = "checkout_completed"
	TypeOrderStatusChanged = "order_status_changed"
	TypeUserRegistered     = "user_registered"
	TypeLowStock           = "low_stock"
)

type OrderCreated struct {
	Type       string    `json:"type"`
	OrderID    uint      `json:"order_id"`
	Number     string    `json:"number"`
	UserID     uint      `json:"user_id"`
	BookID     uint      `json:"book_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice int64     `json:"total_price"`
	At         time.Time `json:"at"`
}

type CheckoutCompleted struct {
	Type        string    `json:"type"`
	CheckoutRef string    `json:"checkout_ref"`
	UserID      uint      `json:"user_id"`
	OrderIDs    []uint    `json:"order_ids"`
	TotalPrice  int64     `json:"total_price"`
	At          time.Time `json:"at"`
}

type OrderStatusChanged struct {
	Type    string    `json:"type"`
	OrderID uint      `json:"order_id"`
	UserID  uint      `json:"user_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

type UserRegistered struct {
	Type     string    `json:"type"`
	UserID   uint      `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	At       time.Time `json:"at"`
}

type LowStock struct {
	Type      string    `json:"type"`
	BookID    uint      `json:"book_id"`
	Title     string    `json:"title"`
	Stock     int       `json:"stock"`
	Threshold int       `json:"threshold"`
	At        time.Time `json:"at"`
}

// Notify publishes and only logs failures; callers never fail because of it.
// The publish is detached from ctx cancellation so a client hanging up after
// the commit does not drop the event.
func Notify(ctx context.Context, p Publisher, topic string, key uint, event any) {
	if p == nil {
		return
	}
	if err := p.PublishEvent(context.WithoutCancel(ctx), topic, strconv.FormatUint(uint64(key), 10), event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "topic", topic, "key", key, "error", err)
	}
}
