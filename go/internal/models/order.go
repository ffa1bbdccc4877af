package models

import (
	"time"
)

// OrderStatus defines where an order is in its lifecycle.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusPending, OrderStatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted
}

// Order is one table's request plus its lifecycle metadata.
type Order struct {
	ID               int64       `json:"id"`
	TableNumber      string      `json:"tableNumber"`
	WaiterName       string      `json:"waiterName"`
	Items            string      `json:"items"` // encoded line items, opaque to the server
	Status           OrderStatus `json:"status"`
	CreatedAt        time.Time   `json:"createdAt"`
	PendingStartTime *time.Time  `json:"pendingStartTime,omitempty"`
	Countdown        *string     `json:"countdown,omitempty"`
	CompletedAt      *time.Time  `json:"completedAt,omitempty"`
}

// Clone returns a deep copy so callers can't mutate shared state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.PendingStartTime != nil {
		t := *o.PendingStartTime
		c.PendingStartTime = &t
	}
	if o.Countdown != nil {
		s := *o.Countdown
		c.Countdown = &s
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
