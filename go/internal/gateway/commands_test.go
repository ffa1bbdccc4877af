package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcdev12/tableside/go/internal/events"
	"github.com/mcdev12/tableside/go/internal/orders"
	"github.com/mcdev12/tableside/go/internal/waiters"
)

func newTestCommandHandler(t *testing.T) *CommandHandler {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	engine := orders.NewApp(orders.NewMemoryRepository(), nil, clock, orders.DefaultConfig())
	directory := waiters.NewApp(waiters.NewMemoryRepository(), clock, bcrypt.MinCost)

	_, err := directory.CreateWaiter(context.Background(), "Ana", "1234")
	require.NoError(t, err)
	_, err = engine.Submit(context.Background(), orders.SubmitOrderRequest{TableNumber: "1", WaiterName: "Ana"})
	require.NoError(t, err)

	return NewCommandHandler(engine, directory)
}

func TestCommandHandler(t *testing.T) {
	tests := []struct {
		name    string
		cmdType events.Type
		data    string
		success bool
		code    string
		message string
	}{
		{"submit", events.TypeSubmitOrder, `{"tableNumber":"2","waiterName":"Ana","order_items":"1x tea"}`, true, "", "Order submitted"},
		{"submit missing table", events.TypeSubmitOrder, `{"waiterName":"Ana"}`, false, "validation_failed", ""},
		{"submit without data", events.TypeSubmitOrder, ``, false, "validation_failed", ""},
		{"pending", events.TypeUpdateStatus, `{"orderId":1,"status":"pending"}`, true, "", "Order status updated"},
		{"unknown status", events.TypeUpdateStatus, `{"orderId":1,"status":"cooking"}`, false, "validation_failed", ""},
		{"update missing order", events.TypeUpdateStatus, `{"orderId":9,"status":"pending"}`, false, "not_found", ""},
		{"complete", events.TypeCompleteOrder, `{"orderId":1}`, true, "", orders.CompletedMessage},
		{"complete missing order", events.TypeCompleteOrder, `{"orderId":9}`, false, "not_found", "Order not found"},
		{"list pending", events.TypeListPendingOrders, ``, true, "", ""},
		{"passkey ok", events.TypeVerifyPasskey, `{"passkey":"1234"}`, true, "", "Passkey verified"},
		{"passkey wrong", events.TypeVerifyPasskey, `{"passkey":"0000"}`, false, "invalid_passkey", "Invalid passkey"},
		{"passkey malformed", events.TypeVerifyPasskey, `{"passkey":1}`, false, "validation_failed", ""},
		{"waiter info", events.TypeGetWaiterInfo, ``, true, "", ""},
		{"unknown command", events.Type("dance"), `{}`, false, "validation_failed", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestCommandHandler(t)

			ack := h.Handle(context.Background(), events.Command{ID: "x", Type: tt.cmdType, Data: json.RawMessage(tt.data)})

			assert.Equal(t, "x", ack.ReplyTo)
			assert.Equal(t, tt.cmdType, ack.Command)
			assert.Equal(t, tt.success, ack.Success, ack.Message)
			assert.Equal(t, tt.code, ack.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, ack.Message)
			}
		})
	}
}

func TestCommandHandler_Results(t *testing.T) {
	h := newTestCommandHandler(t)
	ctx := context.Background()

	ack := h.Handle(ctx, events.Command{ID: "1", Type: events.TypeGetWaiterInfo})
	require.True(t, ack.Success)
	assert.Equal(t, WaiterResult{WaiterName: "Ana"}, ack.Result)

	ack = h.Handle(ctx, events.Command{ID: "2", Type: events.TypeUpdateStatus, Data: json.RawMessage(`{"orderId":1,"status":"pending"}`)})
	require.True(t, ack.Success)

	ack = h.Handle(ctx, events.Command{ID: "3", Type: events.TypeListPendingOrders})
	require.True(t, ack.Success)
	result, ok := ack.Result.(OrdersResult)
	require.True(t, ok)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, int64(1), result.Orders[0].ID)
}

func TestCommandHandler_NoDirectory(t *testing.T) {
	engine := orders.NewApp(orders.NewMemoryRepository(), nil, nil, orders.DefaultConfig())
	h := NewCommandHandler(engine, nil)

	ack := h.Handle(context.Background(), events.Command{Type: events.TypeVerifyPasskey, Data: json.RawMessage(`{"passkey":"1"}`)})
	assert.False(t, ack.Success)
	assert.Equal(t, "invalid_passkey", ack.Code)

	ack = h.Handle(context.Background(), events.Command{Type: events.TypeGetWaiterInfo})
	assert.False(t, ack.Success)
	assert.Equal(t, "not_found", ack.Code)
}
