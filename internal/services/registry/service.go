package registry

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/mcoot/estimategame/internal/dependencies/clock"
	"github.com/mcoot/estimategame/internal/model"
)

// NewPlayer describes a player about to join a session
type NewPlayer struct {
	Nickname    string
	IsBot       bool
	BotStrategy string
}

// Service keeps the per-player state of a session: membership, scores and
// the estimations of the current round.
//
// It works on a loaded session aggregate and never persists anything
// itself. The game controller calls it while holding the session lock and
// saves the aggregate afterwards, so every mutation here is covered by the
// session's serialization and is all-or-nothing.
type Service struct {
	clock clock.Clock
}

// New creates a new registry Service
func New(clock clock.Clock) *Service {
	return &Service{clock: clock}
}

// Join appends a player to the session. The first player to join a session
// becomes its host, which only happens inside session creation.
func (s *Service) Join(session *model.Session, np NewPlayer) (*model.Player, error) {
	nickname, err := model.NormalizeNickname(np.Nickname)
	if err != nil {
		return nil, err
	}

	player := model.Player{
		ID:          model.PlayerID(uuid.NewString()),
		SessionID:   session.ID,
		Nickname:    nickname,
		IsHost:      len(session.Players) == 0,
		IsBot:       np.IsBot,
		BotStrategy: np.BotStrategy,
		JoinedAt:    s.clock.Now(),
	}
	if player.IsHost && player.IsBot {
		return nil, fmt.Errorf("%w: a bot cannot host a session", model.ErrUnauthorized)
	}

	session.Players = append(session.Players, player)
	session.SortPlayers()
	return session.GetPlayer(player.ID), nil
}

// Remove takes a player off the roster. The host cannot be removed.
func (s *Service) Remove(session *model.Session, playerID model.PlayerID) error {
	player, err := s.Get(session, playerID)
	if err != nil {
		return err
	}
	if player.IsHost {
		return fmt.Errorf("%w: the host cannot leave the session", model.ErrUnauthorized)
	}
	session.Players = slices.DeleteFunc(session.Players, func(p model.Player) bool {
		return p.ID == playerID
	})
	return nil
}

// Get returns the player with the given ID
func (s *Service) Get(session *model.Session, playerID model.PlayerID) (*model.Player, error) {
	player := session.GetPlayer(playerID)
	if player == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrPlayerNotFound, playerID)
	}
	return player, nil
}

// ListBySession returns a copy of the roster ordered by join time
func (s *Service) ListBySession(session *model.Session) []model.Player {
	players := slices.Clone(session.Players)
	slices.SortStableFunc(players, func(a, b model.Player) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	return players
}

// ResetEstimations clears every player's estimation for a new round
func (s *Service) ResetEstimations(session *model.Session) {
	for i := range session.Players {
		session.Players[i].LastEstimation = nil
	}
}

// SetEstimation records a player's estimation, replacing any earlier one
func (s *Service) SetEstimation(session *model.Session, playerID model.PlayerID, value float64) error {
	if err := model.ValidateEstimation(value); err != nil {
		return err
	}
	player, err := s.Get(session, playerID)
	if err != nil {
		return err
	}
	player.LastEstimation = &value
	return nil
}

// ApplyScoreDelta adds points to a player. Scores never decrease.
func (s *Service) ApplyScoreDelta(session *model.Session, playerID model.PlayerID, delta int) error {
	if delta < 0 {
		return fmt.Errorf("%w: negative score delta %d", model.ErrInvalidInput, delta)
	}
	player, err := s.Get(session, playerID)
	if err != nil {
		return err
	}
	player.Score += delta
	return nil
}
