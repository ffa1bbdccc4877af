package waiters

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mcdev12/tableside/go/internal/models"
)

const WaiterServiceName = "tableside.waiter.v1.WaiterService"

const (
	ListWaitersProcedure   = "/" + WaiterServiceName + "/ListWaiters"
	CreateWaiterProcedure  = "/" + WaiterServiceName + "/CreateWaiter"
	DeleteWaiterProcedure  = "/" + WaiterServiceName + "/DeleteWaiter"
	VerifyPasskeyProcedure = "/" + WaiterServiceName + "/VerifyPasskey"
)

// WaitersApp defines what the service layer needs from the directory
type WaitersApp interface {
	CreateWaiter(ctx context.Context, name, passkey string) (*models.Waiter, error)
	ListWaiters(ctx context.Context) ([]*models.Waiter, error)
	DeleteWaiter(ctx context.Context, id int64) error
	VerifyPasskey(ctx context.Context, passkey string) (*models.Waiter, error)
}

type ListWaitersRequest struct{}

type ListWaitersResponse struct {
	Waiters []*models.Waiter `json:"waiters"`
}

type CreateWaiterRequest struct {
	WaiterName string `json:"waiterName"`
	Passkey    string `json:"passkey"`
}

type CreateWaiterResponse struct {
	Waiter *models.Waiter `json:"waiter"`
}

type DeleteWaiterRequest struct {
	ID int64 `json:"id"`
}

type DeleteWaiterResponse struct {
	Success bool `json:"success"`
}

type VerifyPasskeyRequest struct {
	Passkey string `json:"passkey"`
}

type VerifyPasskeyResponse struct {
	Success    bool   `json:"success"`
	WaiterName string `json:"waiterName,omitempty"`
}

type Service struct {
	app WaitersApp
}

func NewService(app WaitersApp) *Service {
	return &Service{
		app: app,
	}
}

// NewServiceHandler builds the HTTP handler and the path prefix to mount it on
func NewServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ListWaitersProcedure, connect.NewUnaryHandler(ListWaitersProcedure, svc.ListWaiters, opts...))
	mux.Handle(CreateWaiterProcedure, connect.NewUnaryHandler(CreateWaiterProcedure, svc.CreateWaiter, opts...))
	mux.Handle(DeleteWaiterProcedure, connect.NewUnaryHandler(DeleteWaiterProcedure, svc.DeleteWaiter, opts...))
	mux.Handle(VerifyPasskeyProcedure, connect.NewUnaryHandler(VerifyPasskeyProcedure, svc.VerifyPasskey, opts...))
	return "/" + WaiterServiceName + "/", mux
}

func (s *Service) ListWaiters(ctx context.Context, _ *connect.Request[ListWaitersRequest]) (*connect.Response[ListWaitersResponse], error) {
	waiters, err := s.app.ListWaiters(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListWaitersResponse{Waiters: waiters}), nil
}

func (s *Service) CreateWaiter(ctx context.Context, req *connect.Request[CreateWaiterRequest]) (*connect.Response[CreateWaiterResponse], error) {
	waiter, err := s.app.CreateWaiter(ctx, req.Msg.WaiterName, req.Msg.Passkey)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&CreateWaiterResponse{Waiter: waiter}), nil
}

func (s *Service) DeleteWaiter(ctx context.Context, req *connect.Request[DeleteWaiterRequest]) (*connect.Response[DeleteWaiterResponse], error) {
	if err := s.app.DeleteWaiter(ctx, req.Msg.ID); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&DeleteWaiterResponse{Success: true}), nil
}

// VerifyPasskey reports a mismatch as success=false rather than an error
func (s *Service) VerifyPasskey(ctx context.Context, req *connect.Request[VerifyPasskeyRequest]) (*connect.Response[VerifyPasskeyResponse], error) {
	waiter, err := s.app.VerifyPasskey(ctx, req.Msg.Passkey)
	if errors.Is(err, ErrInvalidPasskey) {
		return connect.NewResponse(&VerifyPasskeyResponse{Success: false}), nil
	}
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&VerifyPasskeyResponse{Success: true, WaiterName: waiter.WaiterName}), nil
}

func connectError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ErrValidationFailed):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrInvalidPasskey):
		return connect.NewError(connect.CodeUnauthenticated, err)
	default:
		return connect.NewError(connect.CodeUnavailable, err)
	}
}
