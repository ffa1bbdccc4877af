package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/tableside/go/internal/models"
)

// SubmitOrderRequest is the client payload for creating an order. Items may
// be a JSON array of line items or a pre-encoded string. Order and
// OrderItems are the field names older clients send.
type SubmitOrderRequest struct {
	TableNumber string          `json:"tableNumber"`
	WaiterName  string          `json:"waiterName"`
	Items       json.RawMessage `json:"items,omitempty"`
	Order       json.RawMessage `json:"order,omitempty"`
	OrderItems  string          `json:"order_items,omitempty"`
}

// EncodedItems returns the items as they will be persisted.
func (r SubmitOrderRequest) EncodedItems() (string, error) {
	switch {
	case len(r.Items) > 0:
		return NormalizeItems(r.Items)
	case len(r.Order) > 0:
		return NormalizeItems(r.Order)
	default:
		return r.OrderItems, nil
	}
}

// NormalizeItems turns a raw items value into the stored string form: arrays
// are re-encoded compactly, strings are kept verbatim, null means no items.
func NormalizeItems(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	switch trimmed[0] {
	case '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", fmt.Errorf("%w: items: %v", ErrValidationFailed, err)
		}
		return buf.String(), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("%w: items: %v", ErrValidationFailed, err)
		}
		return s, nil
	default:
		return "", fmt.Errorf("%w: items must be an array or a string", ErrValidationFailed)
	}
}

func (r SubmitOrderRequest) validate() error {
	if strings.TrimSpace(r.TableNumber) == "" {
		return fmt.Errorf("%w: tableNumber is required", ErrValidationFailed)
	}
	if strings.TrimSpace(r.WaiterName) == "" {
		return fmt.Errorf("%w: waiterName is required", ErrValidationFailed)
	}
	return nil
}

// CreateOrderRequest is what the store needs to insert a new order
type CreateOrderRequest struct {
	TableNumber string
	WaiterName  string
	Items       string
	CreatedAt   time.Time
}

// StatusUpdate is a conditional field-level update. It applies only while
// the stored row still has ExpectedStatus and ExpectedPendingStartTime
// (nil matches an unset timestamp). Nil new values leave columns untouched.
type StatusUpdate struct {
	ID                       int64
	ExpectedStatus           models.OrderStatus
	ExpectedPendingStartTime *time.Time

	Status           models.OrderStatus
	PendingStartTime *time.Time
	Countdown        *string
	CompletedAt      *time.Time
}

// guardFor builds the update guard from the order as it was read.
func guardFor(current *models.Order, status models.OrderStatus) StatusUpdate {
	return StatusUpdate{
		ID:                       current.ID,
		ExpectedStatus:           current.Status,
		ExpectedPendingStartTime: current.PendingStartTime,
		Status:                   status,
	}
}
