package waiters

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// HTTPHandler serves the plain REST roster routes used by the admin screen
type HTTPHandler struct {
	app WaitersApp
}

func NewHTTPHandler(app WaitersApp) *HTTPHandler {
	return &HTTPHandler{
		app: app,
	}
}

type createWaiterBody struct {
	WaiterName string `json:"waitername"`
	Passkey    string `json:"passkey"`
}

type resultBody struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// RegisterRoutes registers the roster routes on mux
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /waiters", h.HandleList)
	mux.HandleFunc("POST /waiters", h.HandleCreate)
	mux.HandleFunc("DELETE /waiters/{id}", h.HandleDelete)
}

// HandleList handles GET /waiters
func (h *HTTPHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	waiters, err := h.app.ListWaiters(r.Context())
	if err != nil {
		writeError(w, err, "Error fetching waiters")
		return
	}
	writeJSON(w, http.StatusOK, waiters)
}

// HandleCreate handles POST /waiters
func (h *HTTPHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body createWaiterBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, resultBody{Message: "Invalid request body"})
		return
	}

	waiter, err := h.app.CreateWaiter(r.Context(), body.WaiterName, body.Passkey)
	if err != nil {
		writeError(w, err, "Error inserting waiter")
		return
	}
	writeJSON(w, http.StatusOK, resultBody{Success: true, ID: waiter.ID})
}

// HandleDelete handles DELETE /waiters/{id}
func (h *HTTPHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, resultBody{Message: "Invalid waiter ID"})
		return
	}

	if err := h.app.DeleteWaiter(r.Context(), id); err != nil {
		writeError(w, err, "Error deleting waiter")
		return
	}
	writeJSON(w, http.StatusOK, resultBody{Success: true})
}

func writeError(w http.ResponseWriter, err error, message string) {
	status := http.StatusServiceUnavailable
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrValidationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, ErrInvalidPasskey):
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, resultBody{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
