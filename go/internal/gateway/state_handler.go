package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableside/go/internal/countdown"
	"github.com/mcdev12/tableside/go/internal/models"
)

// StateProvider exposes current order state for polling clients
type StateProvider interface {
	CurrentOrders(ctx context.Context) ([]*models.Order, error)
	ListPending(ctx context.Context) ([]*models.Order, error)
}

// PendingOrderView is a pending order with its running countdown
type PendingOrderView struct {
	*models.Order
	Elapsed string `json:"elapsed"`
}

// StateHandler handles HTTP requests for order state
type StateHandler struct {
	stateProvider StateProvider
	countdown     *countdown.Calculator
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider, calc *countdown.Calculator) *StateHandler {
	if calc == nil {
		calc = countdown.NewCalculator(nil)
	}
	return &StateHandler{
		stateProvider: provider,
		countdown:     calc,
	}
}

// HandleGetSnapshot handles GET /api/orders/snapshot
func (h *StateHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	orders, err := h.stateProvider.CurrentOrders(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get order snapshot")
		http.Error(w, "Failed to get orders", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		log.Error().Err(err).Msg("failed to encode order snapshot response")
	}
}

// HandleGetPending handles GET /api/orders/pending
func (h *StateHandler) HandleGetPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.stateProvider.ListPending(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get pending orders")
		http.Error(w, "Failed to get pending orders", http.StatusServiceUnavailable)
		return
	}

	views := make([]PendingOrderView, 0, len(pending))
	for _, o := range pending {
		view := PendingOrderView{Order: o, Elapsed: "00:00:00"}
		if o.PendingStartTime != nil {
			view.Elapsed = h.countdown.Since(*o.PendingStartTime)
		}
		views = append(views, view)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		log.Error().Err(err).Msg("failed to encode pending orders response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/orders/snapshot", h.HandleGetSnapshot)
	mux.HandleFunc("GET /api/orders/pending", h.HandleGetPending)
}
