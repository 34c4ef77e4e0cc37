package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcoot/estimategame/internal/api/request"
	"github.com/mcoot/estimategame/internal/api/response"
	"github.com/mcoot/estimategame/internal/services/bot"
	"github.com/mcoot/estimategame/internal/services/game"
)

// RoundHandler handles round endpoints
type RoundHandler struct {
	gameController game.ControllerInterface
	botService     *bot.Service
	presence       Presence
	logger         *slog.Logger
}

// NewRoundHandler creates a new round handler
func NewRoundHandler(gameController game.ControllerInterface, botService *bot.Service, presence Presence, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{
		gameController: gameController,
		botService:     botService,
		presence:       presence,
		logger:         logger,
	}
}

// Start handles POST /api/v1/sessions/{id}/round/start
func (h *RoundHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID, playerID, err := actor(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.gameController.StartRound(r.Context(), sessionID, playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	// Bots guess as soon as the item is shown; with only bots left to
	// submit this may close the round straight away
	if h.botService != nil {
		actions, err := h.botService.ProcessBotActions(r.Context(), sessionID)
		if err != nil {
			h.logger.Error("bot actions failed",
				slog.String("session_id", string(sessionID)),
				slog.Any("error", err))
		}
		if len(actions) > 0 {
			if latest, err := h.gameController.GetSessionState(r.Context(), sessionID); err == nil {
				session = latest
			}
		}
	}

	response.JSON(w, http.StatusOK, snapshot(session, h.presence))
}

// Estimate handles POST /api/v1/sessions/{id}/round/estimate
func (h *RoundHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	sessionID, playerID, err := actor(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	value, err := req.Parse()
	if err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.gameController.SubmitEstimation(r.Context(), sessionID, playerID, value)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, snapshot(session, h.presence))
}

// Close handles POST /api/v1/sessions/{id}/round/close
func (h *RoundHandler) Close(w http.ResponseWriter, r *http.Request) {
	sessionID, playerID, err := actor(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.gameController.ForceCloseRound(r.Context(), sessionID, playerID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, snapshot(session, h.presence))
}
