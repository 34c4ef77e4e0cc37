package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mcoot/estimategame/internal/dependencies/clock"
	"github.com/mcoot/estimategame/internal/dependencies/random"
	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/services/catalog"
	"github.com/mcoot/estimategame/internal/services/registry"
	"github.com/mcoot/estimategame/internal/services/scoring"
	"github.com/mcoot/estimategame/internal/storage"
)

const (
	// SessionCodeLength is the length of generated join codes
	SessionCodeLength = 4
	// SessionCodeAlphabet is the characters used in join codes (avoid confusing chars)
	SessionCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCreateAttempts = 10
	// maxCodeAttempts bounds the search for an unused join code
	maxCodeAttempts = 10
	// maxSaveAttempts bounds how often mutate reloads and reapplies a change
	// after another instance saved the session first
	maxSaveAttempts = 8
)

// Publisher receives the snapshot of every committed session change.
// Publish is called while the session is still locked, so snapshots of
// one session arrive in commit order.
type Publisher interface {
	Publish(snapshot model.Snapshot)
}

// ControllerInterface is the session state machine as seen by transports
type ControllerInterface interface {
	CreateSession(ctx context.Context, hostNickname string) (*model.Session, *model.Player, error)
	JoinSession(ctx context.Context, code string, nickname string) (*model.Session, *model.Player, error)
	GetSessionState(ctx context.Context, sessionID model.SessionID) (*model.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*model.Session, error)
	StartRound(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID) (*model.Session, error)
	SubmitEstimation(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID, value float64) (*model.Session, error)
	ForceCloseRound(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID) (*model.Session, error)
	FinishSession(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID) (*model.Session, error)
	AddBot(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID, strategy string) (*model.Session, *model.Player, error)
	AbandonJoin(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) error
}

// Controller is the session state machine. It is the only writer of
// sessions: every mutation runs under the session's lock, is applied to a
// freshly loaded copy and is saved with a version check, so a rejected
// operation leaves no trace.
type Controller struct {
	storage   storage.Storage
	registry  *registry.Service
	scoring   scoring.ServiceInterface
	catalog   catalog.ServiceInterface
	publisher Publisher
	clock     clock.Clock
	random    random.Random
	logger    *slog.Logger
	locks     *sessionLocks
}

var _ ControllerInterface = (*Controller)(nil)

// NewController creates a new game Controller
func NewController(
	storage storage.Storage,
	registry *registry.Service,
	scoring scoring.ServiceInterface,
	catalog catalog.ServiceInterface,
	publisher Publisher,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:   storage,
		registry:  registry,
		scoring:   scoring,
		catalog:   catalog,
		publisher: publisher,
		clock:     clock,
		random:    random,
		logger:    logger,
		locks:     newSessionLocks(),
	}
}

// CreateSession creates a session in LOBBY with the caller as its host
func (c *Controller) CreateSession(ctx context.Context, hostNickname string) (*model.Session, *model.Player, error) {
	for range maxCreateAttempts {
		code, err := c.freeCode(ctx)
		if err != nil {
			return nil, nil, err
		}

		now := c.clock.Now()
		session := &model.Session{
			ID:        model.SessionID(uuid.NewString()),
			Code:      code,
			Status:    model.StatusLobby,
			CreatedAt: now,
			UpdatedAt: now,
		}
		host, err := c.registry.Join(session, registry.NewPlayer{Nickname: hostNickname})
		if err != nil {
			return nil, nil, err
		}
		hostID := host.ID

		saved, err := c.commit(ctx, session)
		if errors.Is(err, model.ErrConcurrentUpdate) {
			// another instance took the code in the meantime
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		c.logger.Info("session created",
			slog.String("session_id", string(saved.ID)),
			slog.String("code", string(saved.Code)),
			slog.String("host_id", string(hostID)),
		)
		return saved, saved.GetPlayer(hostID), nil
	}
	return nil, nil, fmt.Errorf("could not allocate a session code after %d attempts", maxCreateAttempts)
}

func (c *Controller) freeCode(ctx context.Context) (model.SessionCode, error) {
	for range maxCodeAttempts {
		code := model.SessionCode(c.random.String(SessionCodeLength, SessionCodeAlphabet))
		exists, err := c.storage.SessionCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free session code after %d attempts", maxCodeAttempts)
}

// JoinSession adds a player to the session with the given code
func (c *Controller) JoinSession(ctx context.Context, code string, nickname string) (*model.Session, *model.Player, error) {
	found, err := c.storage.GetSessionByCode(ctx, model.NormalizeSessionCode(code))
	if err != nil {
		return nil, nil, err
	}

	var playerID model.PlayerID
	session, err := c.mutate(ctx, found.ID, func(session *model.Session) (bool, error) {
		if session.Status == model.StatusFinished {
			return false, model.ErrSessionFinished
		}
		player, err := c.registry.Join(session, registry.NewPlayer{Nickname: nickname})
		if err != nil {
			return false, err
		}
		playerID = player.ID
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	c.logger.Info("player joined",
		slog.String("session_id", string(session.ID)),
		slog.String("player_id", string(playerID)),
		slog.String("status", string(session.Status)),
	)
	return session, session.GetPlayer(playerID), nil
}

// AddBot registers a bot player. Host only.
func (c *Controller) AddBot(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID, strategy string) (*model.Session, *model.Player, error) {
	if !model.IsValidBotStrategy(strategy) {
		return nil, nil, fmt.Errorf("%w: %q", model.ErrUnknownStrategy, strategy)
	}

	var botID model.PlayerID
	session, err := c.mutate(ctx, sessionID, func(session *model.Session) (bool, error) {
		if err := requireHost(session, actingPlayerID); err != nil {
			return false, err
		}
		if session.Status == model.StatusFinished {
			return false, model.ErrSessionFinished
		}
		bots := 0
		for _, p := range session.Players {
			if p.IsBot {
				bots++
			}
		}
		bot, err := c.registry.Join(session, registry.NewPlayer{
			Nickname:    fmt.Sprintf("%s %d", model.BotStrategyDisplayName(strategy), bots+1),
			IsBot:       true,
			BotStrategy: strategy,
		})
		if err != nil {
			return false, err
		}
		botID = bot.ID
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	c.logger.Info("bot added",
		slog.String("session_id", string(sessionID)),
		slog.String("player_id", string(botID)),
		slog.String("strategy", strategy),
	)
	return session, session.GetPlayer(botID), nil
}

// AbandonJoin undoes a join whose player never got a token. A guest is
// taken off the roster, closing the round if everyone left has submitted.
// A host still alone in the lobby takes the whole session with them.
func (c *Controller) AbandonJoin(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) error {
	drop := false
	closed := false
	session, err := c.mutate(ctx, sessionID, func(session *model.Session) (bool, error) {
		drop, closed = false, false
		player := session.GetPlayer(playerID)
		if player == nil {
			return false, nil
		}
		if player.IsHost {
			if len(session.Players) > 1 || session.Status != model.StatusLobby {
				return false, fmt.Errorf("%w: the session is already in use", model.ErrInvalidTransition)
			}
			drop = true
			return false, nil
		}

		if err := c.registry.Remove(session, playerID); err != nil {
			return false, err
		}
		if session.Status == model.StatusEstimation && session.AllSubmitted() {
			if err := c.closeRound(session); err != nil {
				return false, err
			}
			closed = true
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	if drop {
		if err := c.storage.DeleteSession(ctx, sessionID); err != nil {
			return err
		}
		c.logger.Info("abandoned session deleted",
			slog.String("session_id", string(sessionID)),
		)
		return nil
	}

	c.logger.Info("abandoned join removed",
		slog.String("session_id", string(sessionID)),
		slog.String("player_id", string(playerID)),
	)
	if closed {
		c.logRoundClosed(session, "all_submitted")
	}
	return nil
}

// GetSessionState returns the current state of a session
func (c *Controller) GetSessionState(ctx context.Context, sessionID model.SessionID) (*model.Session, error) {
	return c.storage.GetSession(ctx, sessionID)
}

// GetSessionByCode returns the session with the given join code
func (c *Controller) GetSessionByCode(ctx context.Context, code string) (*model.Session, error) {
	return c.storage.GetSessionByCode(ctx, model.NormalizeSessionCode(code))
}

// StartRound opens a new round from LOBBY or RESULTS. Host only.
func (c *Controller) StartRound(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID) (*model.Session, error) {
	session, err := c.mutate(ctx, sessionID, func(session *model.Session) (bool, error) {
		if err := requireHost(session, actingPlayerID); err != nil {
			return false, err
		}
		switch session.Status {
		case model.StatusLobby, model.StatusResults:
		case model.StatusFinished:
			return false, model.ErrSessionFinished
		default:
			return false, fmt.Errorf("%w: round already in progress", model.ErrInvalidTransition)
		}

		previous := session.CurrentItemID
		if previous == nil {
			previous = session.PreviousItemID
		}
		itemID, err := c.catalog.RandomItem(previous)
		if err != nil {
			return false, err
		}

		session.PreviousItemID = previous
		session.CurrentItemID = &itemID
		session.Round++
		session.LastResult = nil
		c.registry.ResetEstimations(session)
		session.Status = model.StatusEstimation
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("round started",
		slog.String("session_id", string(sessionID)),
		slog.Int("round", session.Round),
		slog.String("item_id", string(*session.CurrentItemID)),
	)
	return session, nil
}

// SubmitEstimation records a player's estimation. When it completes the
// submission set the round is closed and scored in the same operation.
func (c *Controller) SubmitEstimation(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID, value float64) (*model.Session, error) {
	if err := model.ValidateEstimation(value); err != nil {
		return nil, err
	}

	closed := false
	session, err := c.mutate(ctx, sessionID, func(session *model.Session) (bool, error) {
		closed = false
		if session.Status != model.StatusEstimation {
			return false, model.ErrRoundClosed
		}
		if err := c.registry.SetEstimation(session, actingPlayerID, value); err != nil {
			return false, err
		}
		if session.AllSubmitted() {
			if err := c.closeRound(session); err != nil {
				return false, err
			}
			closed = true
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("estimation submitted",
		slog.String("session_id", string(sessionID)),
		slog.String("player_id", string(actingPlayerID)),
		slog.Bool("round_closed", closed),
	)
	if closed {
		c.logRoundClosed(session, "all_submitted")
	}
	return session, nil
}

// ForceCloseRound closes the current round even if some players have not
// submitted. Host only. Closing a round that is already closed succeeds
// without changing anything.
func (c *Controller) ForceCloseRound(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID) (*model.Session, error) {
	alreadyClosed := false
	session, err := c.mutate(ctx, sessionID, func(session *model.Session) (bool, error) {
		alreadyClosed = false
		if err := requireHost(session, actingPlayerID); err != nil {
			return false, err
		}
		switch session.Status {
		case model.StatusEstimation:
		case model.StatusFinished:
			return false, model.ErrSessionFinished
		case model.StatusLobby:
			return false, fmt.Errorf("%w: no round to close", model.ErrInvalidTransition)
		}

		err := c.closeRound(session)
		if errors.Is(err, model.ErrAlreadyClosed) {
			alreadyClosed = true
			return false, nil
		}
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}

	if alreadyClosed {
		c.logger.Debug("round already closed",
			slog.String("session_id", string(sessionID)),
			slog.Int("round", session.Round),
		)
		return session, nil
	}
	c.logRoundClosed(session, "host_forced")
	return session, nil
}

// FinishSession ends the game from LOBBY or RESULTS. Host only.
func (c *Controller) FinishSession(ctx context.Context, sessionID model.SessionID, actingPlayerID model.PlayerID) (*model.Session, error) {
	session, err := c.mutate(ctx, sessionID, func(session *model.Session) (bool, error) {
		if err := requireHost(session, actingPlayerID); err != nil {
			return false, err
		}
		switch session.Status {
		case model.StatusLobby, model.StatusResults:
		case model.StatusFinished:
			return false, nil
		default:
			return false, fmt.Errorf("%w: close the round first", model.ErrInvalidTransition)
		}
		if session.CurrentItemID != nil {
			session.PreviousItemID = session.CurrentItemID
		}
		session.CurrentItemID = nil
		session.Status = model.StatusFinished
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("session finished",
		slog.String("session_id", string(sessionID)),
		slog.Int("rounds", session.Round),
	)
	return session, nil
}

// closeRound scores the current submission set and moves the session to
// RESULTS. The status check is the at-most-once guard: it only ever runs
// under the session lock, on the latest committed state.
func (c *Controller) closeRound(session *model.Session) error {
	if session.Status != model.StatusEstimation {
		return model.ErrAlreadyClosed
	}

	players := c.registry.ListBySession(session)
	submissions := make([]scoring.Submission, 0, len(players))
	for _, p := range players {
		submissions = append(submissions, scoring.Submission{PlayerID: p.ID, Value: p.LastEstimation})
	}

	result := c.scoring.Score(submissions)
	result.Round = session.Round
	result.ItemID = *session.CurrentItemID

	for _, e := range result.Entries {
		if e.Delta == 0 {
			continue
		}
		if err := c.registry.ApplyScoreDelta(session, e.PlayerID, e.Delta); err != nil {
			return err
		}
	}

	session.LastResult = result
	session.Status = model.StatusResults
	return nil
}

func (c *Controller) logRoundClosed(session *model.Session, reason string) {
	attrs := []any{
		slog.String("session_id", string(session.ID)),
		slog.Int("round", session.Round),
		slog.String("reason", reason),
	}
	if r := session.LastResult; r != nil {
		attrs = append(attrs,
			slog.Int("submissions", r.Submissions),
			slog.Float64("median", r.Median),
			slog.Any("winners", r.Winners),
		)
	}
	c.logger.Info("round closed", attrs...)
}

// mutate runs fn on a fresh copy of the session under the session lock and
// commits the result when fn reports a change. Returning false with a nil
// error is a successful no-op that returns the current state.
//
// The lock only covers this process. When another instance sharing the
// storage saves first, the session is reloaded and fn runs again on the
// newer state, so fn must derive everything from the session it is given.
func (c *Controller) mutate(ctx context.Context, id model.SessionID, fn func(*model.Session) (bool, error)) (*model.Session, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		session, err := c.storage.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}

		changed, err := fn(session)
		if err != nil {
			return nil, err
		}
		if !changed {
			return session, nil
		}

		saved, err := c.commit(ctx, session)
		if !errors.Is(err, model.ErrConcurrentUpdate) || attempt == maxSaveAttempts {
			return saved, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.logger.Debug("session changed elsewhere, retrying",
			slog.String("session_id", string(id)),
			slog.Int("attempt", attempt),
		)
	}
}

// commit bumps the version, saves the session and publishes its snapshot
func (c *Controller) commit(ctx context.Context, session *model.Session) (*model.Session, error) {
	session.Version++
	session.UpdatedAt = c.clock.Now()

	if err := session.Validate(); err != nil {
		c.logger.Error("refusing to save invalid session",
			slog.String("session_id", string(session.ID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	err := c.storage.SaveSession(ctx, session)
	if errors.Is(err, model.ErrConcurrentUpdate) {
		return nil, err
	}
	if err != nil {
		c.logger.Error("failed to save session",
			slog.String("session_id", string(session.ID)),
			slog.Int64("version", session.Version),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.publisher.Publish(session.Snapshot())
	return session, nil
}

func requireHost(session *model.Session, playerID model.PlayerID) error {
	if session.GetPlayer(playerID) == nil {
		return fmt.Errorf("%w: %s is not in this session", model.ErrUnauthorized, playerID)
	}
	if !session.IsHost(playerID) {
		return fmt.Errorf("%w: only the host can do this", model.ErrUnauthorized)
	}
	return nil
}
