package orders

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mcdev12/tableside/go/internal/models"
)

const OrderServiceName = "tableside.order.v1.OrderService"

const (
	SubmitOrderProcedure       = "/" + OrderServiceName + "/SubmitOrder"
	UpdateStatusProcedure      = "/" + OrderServiceName + "/UpdateStatus"
	CompleteOrderProcedure     = "/" + OrderServiceName + "/CompleteOrder"
	ListPendingOrdersProcedure = "/" + OrderServiceName + "/ListPendingOrders"
)

// OrdersApp defines what the service layer needs from the lifecycle engine
type OrdersApp interface {
	Submit(ctx context.Context, req SubmitOrderRequest) (*models.Order, error)
	SetStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error)
	Complete(ctx context.Context, id int64) (*models.Order, error)
	ListPending(ctx context.Context) ([]*models.Order, error)
}

type SubmitOrderResponse struct {
	Order *models.Order `json:"order"`
}

type UpdateStatusRequest struct {
	OrderID int64              `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
}

type UpdateStatusResponse struct {
	Order *models.Order `json:"order"`
}

type CompleteOrderRequest struct {
	OrderID int64 `json:"orderId"`
}

type CompleteOrderResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   *models.Order `json:"order,omitempty"`
}

type ListPendingOrdersRequest struct{}

type ListPendingOrdersResponse struct {
	Orders []*models.Order `json:"orders"`
}

// Service exposes the lifecycle commands over Connect for request/response
// clients. Broadcasts still reach observers through the gateway.
type Service struct {
	app OrdersApp
}

// NewService creates a new orders Connect service
func NewService(app OrdersApp) *Service {
	return &Service{
		app: app,
	}
}

// NewServiceHandler builds the HTTP handler and the path prefix to mount it on
func NewServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(SubmitOrderProcedure, connect.NewUnaryHandler(SubmitOrderProcedure, svc.SubmitOrder, opts...))
	mux.Handle(UpdateStatusProcedure, connect.NewUnaryHandler(UpdateStatusProcedure, svc.UpdateStatus, opts...))
	mux.Handle(CompleteOrderProcedure, connect.NewUnaryHandler(CompleteOrderProcedure, svc.CompleteOrder, opts...))
	mux.Handle(ListPendingOrdersProcedure, connect.NewUnaryHandler(ListPendingOrdersProcedure, svc.ListPendingOrders, opts...))
	return "/" + OrderServiceName + "/", mux
}

// SubmitOrder creates an order
func (s *Service) SubmitOrder(ctx context.Context, req *connect.Request[SubmitOrderRequest]) (*connect.Response[SubmitOrderResponse], error) {
	order, err := s.app.Submit(ctx, *req.Msg)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&SubmitOrderResponse{Order: order}), nil
}

// UpdateStatus applies a status transition
func (s *Service) UpdateStatus(ctx context.Context, req *connect.Request[UpdateStatusRequest]) (*connect.Response[UpdateStatusResponse], error) {
	order, err := s.app.SetStatus(ctx, req.Msg.OrderID, req.Msg.Status)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&UpdateStatusResponse{Order: order}), nil
}

// CompleteOrder finalises an order
func (s *Service) CompleteOrder(ctx context.Context, req *connect.Request[CompleteOrderRequest]) (*connect.Response[CompleteOrderResponse], error) {
	order, err := s.app.Complete(ctx, req.Msg.OrderID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&CompleteOrderResponse{
		Success: true,
		Message: CompletedMessage,
		Order:   order,
	}), nil
}

// ListPendingOrders returns every pending order
func (s *Service) ListPendingOrders(ctx context.Context, _ *connect.Request[ListPendingOrdersRequest]) (*connect.Response[ListPendingOrdersResponse], error) {
	orders, err := s.app.ListPending(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListPendingOrdersResponse{Orders: orders}), nil
}

// CompletedMessage is the success text clients show after completing an order
const CompletedMessage = "Order completed successfully"

func connectError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ErrValidationFailed):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrInvalidTransition):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeUnavailable, err)
	}
}
