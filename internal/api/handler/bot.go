package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/estimategame/internal/api/request"
	"github.com/mcoot/estimategame/internal/api/response"
	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/services/bot"
)

// BotHandler handles bot endpoints
type BotHandler struct {
	botService *bot.Service
}

// NewBotHandler creates a new bot handler
func NewBotHandler(botService *bot.Service) *BotHandler {
	return &BotHandler{botService: botService}
}

// Add handles POST /api/v1/sessions/{id}/bots
func (h *BotHandler) Add(w http.ResponseWriter, r *http.Request) {
	sessionID, playerID, err := actor(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.AddBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Allow empty body for the default strategy
		req = request.AddBotRequest{}
	}
	if req.Strategy == "" {
		req.Strategy = model.BotStrategyRandom
	}

	player, err := h.botService.AddBot(r.Context(), sessionID, playerID, req.Strategy)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, response.PlayerFromModel(player))
}
