package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableside/go/internal/events"
	"github.com/mcdev12/tableside/go/internal/models"
	"github.com/mcdev12/tableside/go/internal/orders"
	"github.com/mcdev12/tableside/go/internal/waiters"
)

// WaiterDirectory is the part of the waiter roster commands can reach
type WaiterDirectory interface {
	VerifyPasskey(ctx context.Context, passkey string) (*models.Waiter, error)
	WaiterInfo(ctx context.Context) (string, error)
}

// Reply texts shown by clients.
const (
	msgOrderSubmitted  = "Order submitted"
	msgStatusUpdated   = "Order status updated"
	msgOrderNotFound   = "Order not found"
	msgCompleteFailed  = "Error completing order"
	msgPasskeyAccepted = "Passkey verified"
	msgPasskeyRejected = "Invalid passkey"
	msgWaiterNotFound  = "No waiter registered"
	msgUnknownCommand  = "Unknown command"
)

type verifyPasskeyCommand struct {
	Passkey string `json:"passkey"`
}

// WaiterResult is the result of verifyPasskey and getWaiterInfo
type WaiterResult struct {
	WaiterName string `json:"waiterName"`
}

// OrderResult is the result of commands that touch one order
type OrderResult struct {
	Order *models.Order `json:"order"`
}

// OrdersResult is the result of listPendingOrders
type OrdersResult struct {
	Orders []*models.Order `json:"orders"`
}

// CommandHandler runs client commands against the lifecycle engine and the
// waiter directory. Results go back in the ack only; state changes reach
// everyone through the engine's own broadcasts.
type CommandHandler struct {
	orders  orders.OrdersApp
	waiters WaiterDirectory
}

// NewCommandHandler creates a new command handler. waiters may be nil when
// no roster is configured.
func NewCommandHandler(ordersApp orders.OrdersApp, directory WaiterDirectory) *CommandHandler {
	return &CommandHandler{
		orders:  ordersApp,
		waiters: directory,
	}
}

// Handle runs one command and builds its ack
func (h *CommandHandler) Handle(ctx context.Context, cmd events.Command) events.AckPayload {
	ack := h.dispatch(ctx, cmd)
	ack.ReplyTo = cmd.ID
	ack.Command = cmd.Type

	if !ack.Success {
		log.Debug().
			Str("command", string(cmd.Type)).
			Str("code", ack.Code).
			Msg("command rejected")
	}
	return ack
}

func (h *CommandHandler) dispatch(ctx context.Context, cmd events.Command) events.AckPayload {
	switch cmd.Type {
	case events.TypeSubmitOrder:
		var req orders.SubmitOrderRequest
		if err := decode(cmd.Data, &req); err != nil {
			return orderFailure(err, "")
		}
		order, err := h.orders.Submit(ctx, req)
		if err != nil {
			return orderFailure(err, "")
		}
		return success(msgOrderSubmitted, OrderResult{Order: order})

	case events.TypeUpdateStatus:
		var req orders.UpdateStatusRequest
		if err := decode(cmd.Data, &req); err != nil {
			return orderFailure(err, "")
		}
		order, err := h.orders.SetStatus(ctx, req.OrderID, req.Status)
		if err != nil {
			return orderFailure(err, "")
		}
		return success(msgStatusUpdated, OrderResult{Order: order})

	case events.TypeCompleteOrder:
		var req orders.CompleteOrderRequest
		if err := decode(cmd.Data, &req); err != nil {
			return orderFailure(err, msgCompleteFailed)
		}
		order, err := h.orders.Complete(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return orderFailure(err, msgOrderNotFound)
			}
			return orderFailure(err, msgCompleteFailed)
		}
		return success(orders.CompletedMessage, OrderResult{Order: order})

	case events.TypeListPendingOrders:
		pending, err := h.orders.ListPending(ctx)
		if err != nil {
			return orderFailure(err, "")
		}
		return success("", OrdersResult{Orders: pending})

	case events.TypeVerifyPasskey:
		if h.waiters == nil {
			return failure(msgPasskeyRejected, waiters.ErrorCode(waiters.ErrInvalidPasskey))
		}
		var req verifyPasskeyCommand
		if err := decode(cmd.Data, &req); err != nil {
			return orderFailure(err, "")
		}
		waiter, err := h.waiters.VerifyPasskey(ctx, req.Passkey)
		if err != nil {
			if errors.Is(err, waiters.ErrInvalidPasskey) {
				return failure(msgPasskeyRejected, waiters.ErrorCode(err))
			}
			return failure(err.Error(), waiters.ErrorCode(err))
		}
		return success(msgPasskeyAccepted, WaiterResult{WaiterName: waiter.WaiterName})

	case events.TypeGetWaiterInfo:
		if h.waiters == nil {
			return failure(msgWaiterNotFound, waiters.ErrorCode(waiters.ErrNotFound))
		}
		name, err := h.waiters.WaiterInfo(ctx)
		if err != nil {
			if errors.Is(err, waiters.ErrNotFound) {
				return failure(msgWaiterNotFound, waiters.ErrorCode(err))
			}
			return failure(err.Error(), waiters.ErrorCode(err))
		}
		return success("", WaiterResult{WaiterName: name})

	default:
		return failure(fmt.Sprintf("%s: %q", msgUnknownCommand, cmd.Type), "validation_failed")
	}
}

// decode reads command data. Both packages map their ErrValidationFailed to
// the same code, so the orders sentinel is used here.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing command data", orders.ErrValidationFailed)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", orders.ErrValidationFailed, err)
	}
	return nil
}

func success(message string, result any) events.AckPayload {
	return events.AckPayload{Success: true, Message: message, Result: result}
}

func failure(message, code string) events.AckPayload {
	return events.AckPayload{Success: false, Message: message, Code: code}
}

// orderFailure uses message when set, the error text otherwise
func orderFailure(err error, message string) events.AckPayload {
	if message == "" {
		message = err.Error()
	}
	return failure(message, orders.ErrorCode(err))
}
