package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names an event or a client command on the wire.
type Type string

// Engine -> observers
const (
	TypeOrderCreated       Type = "orderCreated"
	TypeOrderStatusChanged Type = "orderStatusChanged"
	TypeOrdersSnapshot     Type = "ordersSnapshot"
)

// Client -> engine
const (
	TypeSubmitOrder       Type = "submitOrder"
	TypeUpdateStatus      Type = "updateStatus"
	TypeCompleteOrder     Type = "completeOrder"
	TypeVerifyPasskey     Type = "verifyPasskey"
	TypeListPendingOrders Type = "listPendingOrders"
	TypeGetWaiterInfo     Type = "getWaiterInfo"
)

// TypeAck is the reply sent only to the connection that issued a command.
const TypeAck Type = "ack"

// Envelope is the structure of every message pushed to observers.
type Envelope struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into a fresh envelope stamped at ts.
func NewEnvelope(eventType Type, ts time.Time, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: ts.UTC(),
		Data:      data,
	}, nil
}

// ParsePayload decodes the envelope data into the matching payload struct.
func ParsePayload(env *Envelope) (any, error) {
	switch env.Type {
	case TypeOrderCreated:
		var payload OrderCreatedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeOrderStatusChanged:
		var payload OrderStatusChangedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeOrdersSnapshot:
		var payload OrdersSnapshotPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeAck:
		var payload AckPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}

// Command is a request sent by a client over the websocket.
type Command struct {
	ID   string          `json:"id"`
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
