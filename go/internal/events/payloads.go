package events

import (
	"time"

	"github.com/mcdev12/tableside/go/internal/models"
)

// Event payload types shared between the order engine, the relay and the gateway

// OrderCreatedPayload is the payload for an orderCreated event
type OrderCreatedPayload = models.Order

// OrderStatusChangedPayload is the payload for an orderStatusChanged event
type OrderStatusChangedPayload struct {
	OrderID          int64              `json:"orderId"`
	Status           models.OrderStatus `json:"status"`
	PendingStartTime *time.Time         `json:"pendingStartTime,omitempty"`
	Countdown        *string            `json:"countdown,omitempty"`
}

// OrdersSnapshotPayload is the payload for an ordersSnapshot event
type OrdersSnapshotPayload struct {
	Orders      []*models.Order `json:"orders"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// AckPayload answers one client command and goes to the issuer only
type AckPayload struct {
	ReplyTo string `json:"replyTo"`
	Command Type   `json:"command"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Result  any    `json:"result,omitempty"`
}
