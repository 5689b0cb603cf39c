package tzroom

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// LoopRunner runs a function on the gateway's event loop and waits for it.
type LoopRunner interface {
	Do(ctx context.Context, fn func()) error
}

// StateHandler serves read-only room state over HTTP
type StateHandler struct {
	controller *Controller
	loop       LoopRunner
}

func NewStateHandler(controller *Controller, loop LoopRunner) *StateHandler {
	return &StateHandler{controller: controller, loop: loop}
}

// HandleListRooms handles GET /api/rooms
func (h *StateHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	var rooms []RoomState
	if err := h.loop.Do(r.Context(), func() {
		rooms = h.controller.Rooms()
	}); err != nil {
		log.Error().Err(err).Msg("failed to read rooms")
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, rooms)
}

// HandleGetRoom handles GET /api/rooms/{name}
func (h *StateHandler) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Room name is required", http.StatusBadRequest)
		return
	}

	var (
		room  RoomState
		found bool
	)
	if err := h.loop.Do(r.Context(), func() {
		room, found = h.controller.Room(name)
	}); err != nil {
		log.Error().Err(err).Str("room", name).Msg("failed to read room")
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	if !found {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	writeJSON(w, room)
}

// RegisterStateRoutes registers room state HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms", h.HandleListRooms)
	mux.HandleFunc("GET /api/rooms/{name}", h.HandleGetRoom)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
