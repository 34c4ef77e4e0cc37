package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/estimategame/internal/api/middleware"
	"github.com/mcoot/estimategame/internal/api/request"
	"github.com/mcoot/estimategame/internal/api/response"
	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/services/game"
)

// TokenIssuer hands out player tokens
type TokenIssuer interface {
	IssueToken(ctx context.Context, player *model.Player) (string, error)
}

// Presence reports which players are connected to a session
type Presence interface {
	Online(sessionID model.SessionID) map[model.PlayerID]bool
}

// SessionHandler handles session lifecycle endpoints
type SessionHandler struct {
	gameController game.ControllerInterface
	tokens         TokenIssuer
	presence       Presence
	logger         *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(gameController game.ControllerInterface, tokens TokenIssuer, presence Presence, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		gameController: gameController,
		tokens:         tokens,
		presence:       presence,
		logger:         logger,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	session, host, err := h.gameController.CreateSession(r.Context(), req.Nickname)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.writeJoined(w, r, http.StatusCreated, session, host)
}

// Join handles POST /api/v1/sessions/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req request.JoinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Code == "" {
		WriteError(w, NewInvalidRequestError("code is required"))
		return
	}

	session, player, err := h.gameController.JoinSession(r.Context(), req.Code, req.Nickname)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.writeJoined(w, r, http.StatusOK, session, player)
}

func (h *SessionHandler) writeJoined(w http.ResponseWriter, r *http.Request, status int, session *model.Session, player *model.Player) {
	token, err := h.tokens.IssueToken(r.Context(), player)
	if err != nil {
		h.logger.Error("failed to issue token",
			slog.String("session_id", string(session.ID)),
			slog.String("player_id", string(player.ID)),
			slog.Any("error", err))
		// the player cannot act without a token, so take the join back
		if undoErr := h.gameController.AbandonJoin(context.WithoutCancel(r.Context()), session.ID, player.ID); undoErr != nil {
			h.logger.Error("failed to undo join",
				slog.String("session_id", string(session.ID)),
				slog.String("player_id", string(player.ID)),
				slog.Any("error", undoErr))
		}
		WriteError(w, err)
		return
	}

	response.JSON(w, status, response.JoinResponse{
		Session: snapshot(session, h.presence),
		Player:  response.PlayerFromModel(player),
		Token:   token,
	})
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.gameController.GetSessionState(r.Context(), sessionIDFromPath(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, snapshot(session, h.presence))
}

// GetByCode handles GET /api/v1/sessions/code/{code}
func (h *SessionHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	session, err := h.gameController.GetSessionByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, snapshot(session, h.presence))
}

// Finish handles POST /api/v1/sessions/{id}/finish
func (h *SessionHandler) Finish(w http.ResponseWriter, r *http.Request) {
	sessionID, playerID, err := actor(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.gameController.FinishSession(r.Context(), sessionID, playerID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, snapshot(session, h.presence))
}

// Me handles GET /api/v1/me
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	session, err := h.gameController.GetSessionState(r.Context(), identity.SessionID)
	if err != nil {
		WriteError(w, err)
		return
	}
	player := session.GetPlayer(identity.PlayerID)
	if player == nil {
		WriteError(w, model.ErrPlayerNotFound)
		return
	}
	response.JSON(w, http.StatusOK, response.MeResponse{
		Player:  response.PlayerFromModel(player),
		Session: snapshot(session, h.presence),
	})
}

func sessionIDFromPath(r *http.Request) model.SessionID {
	return model.SessionID(mux.Vars(r)["id"])
}

// actor returns the session in the path and the authenticated player,
// who must belong to that session
func actor(r *http.Request) (model.SessionID, model.PlayerID, error) {
	identity := middleware.MustGetIdentity(r.Context())
	sessionID := sessionIDFromPath(r)
	if identity.SessionID != sessionID {
		return "", "", model.ErrUnauthorized
	}
	return sessionID, identity.PlayerID, nil
}

func snapshot(session *model.Session, presence Presence) model.Snapshot {
	snap := session.Snapshot()
	if presence == nil {
		return snap
	}
	return snap.WithPresence(presence.Online(session.ID))
}
