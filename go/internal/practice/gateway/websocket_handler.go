package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionLookup reports whether a session is live and returns its current
// state for the subscriber's first frame. A nil state skips that frame.
type SessionLookup func(sessionID uuid.UUID) (state any, ok bool)

// WebSocketHandler serves the session event stream.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	lookup            SessionLookup
}

// NewWebSocketHandler creates a new WebSocket handler. A nil lookup accepts
// any well-formed session id.
func NewWebSocketHandler(cm *ConnectionManager, lookup SessionLookup) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		lookup:            lookup,
	}
}

// HandleSessionConnection subscribes the caller to /ws/session?session_id=<uuid>.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("session_id")
	if raw == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	sessionID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid session_id format", http.StatusBadRequest)
		return
	}

	var initial any
	if h.lookup != nil {
		state, ok := h.lookup(sessionID)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		initial = state
	}

	if err := h.connectionManager.UpgradeConnection(w, r, sessionID, initial); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats writes connection statistics as JSON.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
