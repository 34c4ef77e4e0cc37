package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/estimategame/internal/api/middleware"
	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/realtime"
)

// EventsHandler streams session snapshots
type EventsHandler struct {
	feed      *realtime.Feed
	upgrader  *websocket.Upgrader
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(feed *realtime.Feed, allowedOrigins []string, keepAlive time.Duration, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		feed:      feed,
		upgrader:  realtime.NewUpgrader(allowedOrigins),
		keepAlive: keepAlive,
		logger:    logger,
	}
}

// attach opens a stream for the session. Authenticated members of the
// session are attached as themselves and show as online; anyone else
// watches anonymously.
func (h *EventsHandler) attach(w http.ResponseWriter, r *http.Request) (*realtime.Stream, bool) {
	sessionID := sessionIDFromPath(r)
	var playerID model.PlayerID
	if identity := middleware.GetIdentity(r.Context()); identity != nil && identity.SessionID == sessionID {
		playerID = identity.PlayerID
	}

	stream, err := h.feed.Attach(r.Context(), sessionID, playerID)
	if err != nil {
		WriteError(w, err)
		return nil, false
	}
	return stream, true
}

// SSE handles GET /api/v1/sessions/{id}/events
func (h *EventsHandler) SSE(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.attach(w, r)
	if !ok {
		return
	}
	defer stream.Close()

	realtime.ServeSSE(w, r, stream, h.keepAlive, h.logger)
}

// WebSocket handles GET /api/v1/sessions/{id}/ws
func (h *EventsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	stream, ok := h.attach(w, r)
	if !ok {
		return
	}
	defer stream.Close()

	realtime.ServeWS(w, r, h.upgrader, stream, h.keepAlive, h.logger)
}
