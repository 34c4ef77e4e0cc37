package factory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/realtime"
	"github.com/mcoot/estimategame/internal/services/scoring"
	redisstorage "github.com/mcoot/estimategame/internal/storage/redis"
	"github.com/mcoot/estimategame/internal/storage/sqlite"
	"github.com/mcoot/estimategame/internal/testutil"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

// watch applies every observed snapshot of the session to a view until ctx ends
func watch(ctx context.Context, feed *realtime.Feed, id model.SessionID, playerID model.PlayerID) *realtime.View {
	view := realtime.NewView()
	go func() {
		for snap := range feed.Observe(ctx, id, playerID) {
			view.Apply(snap)
		}
	}()
	return view
}

func (s *IntegrationSuite) waitForVersion(view *realtime.View, version int64) model.Snapshot {
	s.Require().Eventually(func() bool {
		snap, ok := view.Current()
		return ok && snap.Version >= version
	}, 2*time.Second, 5*time.Millisecond)
	snap, _ := view.Current()
	return snap
}

func scoresByNickname(snap model.Snapshot) map[string]int {
	out := make(map[string]int, len(snap.Players))
	for _, p := range snap.Players {
		out[p.Nickname] = p.Score
	}
	return out
}

// Test: Complete session from creation to finish, watched by an observer
func (s *IntegrationSuite) TestCompleteSessionFlow() {
	ctrl := s.app.GameController

	session, host, err := ctrl.CreateSession(s.ctx, "Host")
	s.Require().NoError(err)
	_, alice, err := ctrl.JoinSession(s.ctx, string(session.Code), "Alice")
	s.Require().NoError(err)
	_, bob, err := ctrl.JoinSession(s.ctx, string(session.Code), "Bob")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	view := watch(ctx, s.app.Feed, session.ID, host.ID)
	s.waitForVersion(view, 3)

	// Round 1: {Host:10, Alice:20, Bob:15} gives Bob +25
	started, err := ctrl.StartRound(s.ctx, session.ID, host.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusEstimation, started.Status)
	s.Require().NotNil(started.CurrentItemID)

	_, err = ctrl.SubmitEstimation(s.ctx, session.ID, host.ID, 10)
	s.Require().NoError(err)
	_, err = ctrl.SubmitEstimation(s.ctx, session.ID, alice.ID, 20)
	s.Require().NoError(err)
	closed, err := ctrl.SubmitEstimation(s.ctx, session.ID, bob.ID, 15)
	s.Require().NoError(err)
	s.Equal(model.StatusResults, closed.Status)

	snap := s.waitForVersion(view, closed.Version)
	s.Equal(model.StatusResults, snap.Status)
	s.Equal(map[string]int{"Host": 0, "Alice": 0, "Bob": 25}, scoresByNickname(snap))
	s.Require().NotNil(snap.Result)
	s.Equal([]model.PlayerID{bob.ID}, snap.Result.Winners)
	s.Equal(15.0, snap.Result.Median)

	// Round 2 uses a different item; the host closes it early
	round2, err := ctrl.StartRound(s.ctx, session.ID, host.ID)
	s.Require().NoError(err)
	s.NotEqual(*started.CurrentItemID, *round2.CurrentItemID)
	_, err = ctrl.SubmitEstimation(s.ctx, session.ID, alice.ID, 100)
	s.Require().NoError(err)
	_, err = ctrl.SubmitEstimation(s.ctx, session.ID, bob.ID, 90)
	s.Require().NoError(err)
	closed, err = ctrl.ForceCloseRound(s.ctx, session.ID, host.ID)
	s.Require().NoError(err)

	// two submissions skip the extreme rule; the lower-middle median is 90
	snap = s.waitForVersion(view, closed.Version)
	s.Equal(map[string]int{"Host": 0, "Alice": 5, "Bob": 50}, scoresByNickname(snap))

	finished, err := ctrl.FinishSession(s.ctx, session.ID, host.ID)
	s.Require().NoError(err)
	snap = s.waitForVersion(view, finished.Version)
	s.Equal(model.StatusFinished, snap.Status)
	s.Nil(snap.CurrentItemID)

	_, _, err = ctrl.JoinSession(s.ctx, string(session.Code), "Late")
	s.ErrorIs(err, model.ErrSessionFinished)
}

// Test: Bots submit through the controller and count towards auto-close
func (s *IntegrationSuite) TestBotsParticipateInRounds() {
	ctrl := s.app.GameController

	session, host, err := ctrl.CreateSession(s.ctx, "Host")
	s.Require().NoError(err)
	bot, err := s.app.BotService.AddBot(s.ctx, session.ID, host.ID, model.BotStrategyAnchor)
	s.Require().NoError(err)
	s.True(bot.IsBot)

	round, err := ctrl.StartRound(s.ctx, session.ID, host.ID)
	s.Require().NoError(err)
	item, err := s.app.CatalogService.GetItem(*round.CurrentItemID)
	s.Require().NoError(err)

	actions, err := s.app.BotService.ProcessBotActions(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(actions, 1)
	// the mocked random source sits the anchor bot right on the base price
	s.Equal(item.BasePrice, actions[0].Value)

	closed, err := ctrl.SubmitEstimation(s.ctx, session.ID, host.ID, item.BasePrice)
	s.Require().NoError(err)
	s.Equal(model.StatusResults, closed.Status)
	for _, p := range closed.Players {
		s.Equal(scoring.BasePoints+scoring.ProximityPoints, p.Score, "two submissions skip the extreme rule")
	}
}

// Test: Tokens issued at join resolve to the player in the right session
func (s *IntegrationSuite) TestTokensIdentifyPlayers() {
	session, host, err := s.app.GameController.CreateSession(s.ctx, "Host")
	s.Require().NoError(err)

	token, err := s.app.AuthService.IssueToken(s.ctx, host)
	s.Require().NoError(err)

	identity, err := s.app.AuthService.Validate(s.ctx, token)
	s.Require().NoError(err)
	s.Equal(host.ID, identity.PlayerID)
	s.Equal(session.ID, identity.SessionID)
}

// runRound plays one three-player round and returns the final session
func runRound(s *suite.Suite, app *TestApp) *model.Session {
	ctx := context.Background()
	ctrl := app.GameController
	session, host, err := ctrl.CreateSession(ctx, "Host")
	s.Require().NoError(err)
	_, alice, err := ctrl.JoinSession(ctx, string(session.Code), "Alice")
	s.Require().NoError(err)
	_, err = ctrl.StartRound(ctx, session.ID, host.ID)
	s.Require().NoError(err)
	_, err = ctrl.SubmitEstimation(ctx, session.ID, host.ID, 40)
	s.Require().NoError(err)
	closed, err := ctrl.SubmitEstimation(ctx, session.ID, alice.ID, 60)
	s.Require().NoError(err)
	reloaded, err := ctrl.GetSessionState(ctx, closed.ID)
	s.Require().NoError(err)
	return reloaded
}

// Test: The same flow works on every storage backend
func (s *IntegrationSuite) TestStorageBackends() {
	s.Run("sqlite", func() {
		store, err := sqlite.Open(sqlite.MemoryPath)
		s.Require().NoError(err)
		app := NewTestApp(WithStorage(store))
		defer func() { s.NoError(app.Close()) }()

		session := runRound(&s.Suite, app)
		s.Equal(model.StatusResults, session.Status)
		s.Require().NotNil(session.LastResult)
		s.Equal(2, session.LastResult.Submissions)
	})

	s.Run("redis", func() {
		mr := miniredis.RunT(s.T())
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		app := NewTestApp(WithStorage(redisstorage.NewWithClient(client, redisstorage.DefaultConfig())))
		defer func() { s.NoError(app.Close()) }()

		session := runRound(&s.Suite, app)
		s.Equal(model.StatusResults, session.Status)
		s.Require().NotNil(session.LastResult)
		s.Equal(2, session.LastResult.Submissions)
	})
}

// Test: Observers on one instance see commits made on another
func (s *IntegrationSuite) TestSnapshotsCrossInstancesOverNATS() {
	bus := testutil.NewNATSBus()
	store := s.app.Storage
	a := NewTestApp(WithStorage(store), WithNATS(bus))
	b := NewTestApp(WithStorage(store), WithNATS(bus))
	defer a.HubManager.Close()
	defer b.HubManager.Close()
	s.Require().NoError(a.Relay.Start())
	s.Require().NoError(b.Relay.Start())

	session, host, err := a.GameController.CreateSession(s.ctx, "Host")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	view := watch(ctx, b.Feed, session.ID, "")
	s.waitForVersion(view, session.Version)

	joined, _, err := a.GameController.JoinSession(s.ctx, string(session.Code), "Alice")
	s.Require().NoError(err)
	started, err := a.GameController.StartRound(s.ctx, session.ID, host.ID)
	s.Require().NoError(err)

	snap := s.waitForVersion(view, started.Version)
	s.Equal(model.StatusEstimation, snap.Status)
	s.Len(snap.Players, len(joined.Players))
}
