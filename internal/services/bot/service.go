package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/services/catalog"
	"github.com/mcoot/estimategame/internal/services/game"
)

// BotAction is one estimation submitted by a bot during ProcessBotActions
type BotAction struct {
	PlayerID model.PlayerID
	Value    float64
}

// Service drives bot players. Bots act only through the game controller,
// like any other player.
type Service struct {
	gameController game.ControllerInterface
	catalog        catalog.ServiceInterface
	strategies     map[string]Strategy
	logger         *slog.Logger
}

// NewService creates a new bot Service
func NewService(
	gameController game.ControllerInterface,
	catalog catalog.ServiceInterface,
	strategies map[string]Strategy,
	logger *slog.Logger,
) *Service {
	return &Service{
		gameController: gameController,
		catalog:        catalog,
		strategies:     strategies,
		logger:         logger.With(slog.String("component", "bot-service")),
	}
}

// AddBot adds a bot to the session on behalf of the host. A bot added
// while a round is open submits straight away.
func (s *Service) AddBot(ctx context.Context, sessionID model.SessionID, requestingPlayerID model.PlayerID, strategy string) (*model.Player, error) {
	if _, ok := s.strategies[strategy]; !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownStrategy, strategy)
	}

	session, bot, err := s.gameController.AddBot(ctx, sessionID, requestingPlayerID, strategy)
	if err != nil {
		return nil, err
	}

	if session.Status == model.StatusEstimation {
		if _, err := s.ProcessBotActions(ctx, sessionID); err != nil {
			return bot, err
		}
	}
	return bot, nil
}

// ProcessBotActions submits an estimation for every bot that has not
// submitted in the current round. It stops quietly if the round closes
// underneath it.
func (s *Service) ProcessBotActions(ctx context.Context, sessionID model.SessionID) ([]BotAction, error) {
	session, err := s.gameController.GetSessionState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.StatusEstimation || session.CurrentItemID == nil {
		return nil, nil
	}

	item, err := s.catalog.GetItem(*session.CurrentItemID)
	if err != nil {
		return nil, err
	}

	var actions []BotAction
	for _, p := range session.Players {
		if !p.IsBot || p.HasSubmitted() {
			continue
		}

		value := s.strategyForPlayer(&p).Estimate(item)
		_, err := s.gameController.SubmitEstimation(ctx, sessionID, p.ID, value)
		if errors.Is(err, model.ErrRoundClosed) {
			break
		}
		if err != nil {
			return actions, err
		}
		actions = append(actions, BotAction{PlayerID: p.ID, Value: value})
	}

	if len(actions) > 0 {
		s.logger.Debug("bots submitted",
			slog.String("session_id", string(sessionID)),
			slog.Int("count", len(actions)),
		)
	}
	return actions, nil
}

// strategyForPlayer returns the strategy for a bot player, falling back to
// the random strategy if the player's strategy is not registered
func (s *Service) strategyForPlayer(player *model.Player) Strategy {
	if st, ok := s.strategies[player.BotStrategy]; ok {
		return st
	}
	return s.strategies[model.BotStrategyRandom]
}
