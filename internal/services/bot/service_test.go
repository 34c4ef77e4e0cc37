package bot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/estimategame/internal/dependencies/mocks"
	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/services/bot"
	"github.com/mcoot/estimategame/internal/services/catalog"
	"github.com/mcoot/estimategame/internal/services/game"
	"github.com/mcoot/estimategame/internal/services/registry"
	"github.com/mcoot/estimategame/internal/services/scoring"
	"github.com/mcoot/estimategame/internal/storage/memory"
	"github.com/mcoot/estimategame/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	mockClock  *mocks.MockClock
	mockRandom *mocks.MockRandom

	gameController *game.Controller
	botService     *bot.Service

	ctx context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	store := memory.New()
	s.mockClock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.mockRandom = mocks.NewMockRandom()
	logger := testutil.NopLogger()
	s.ctx = context.Background()

	items := catalog.New(s.mockRandom)
	s.Require().NoError(items.LoadItems([]model.Item{
		{ID: "bike", Names: map[string]string{"en": "Bike"}, BasePrice: 100},
	}))

	s.gameController = game.NewController(
		store, registry.New(s.mockClock), scoring.New(), items,
		testutil.NewSnapshotRecorder(), s.mockClock, s.mockRandom, logger,
	)
	s.botService = bot.NewService(s.gameController, items, bot.DefaultStrategies(s.mockRandom), logger)
}

func (s *ServiceSuite) newSession() (*model.Session, model.PlayerID) {
	session, host, err := s.gameController.CreateSession(s.ctx, "Host")
	s.Require().NoError(err)
	return session, host.ID
}

func (s *ServiceSuite) TestStrategiesStayInRange() {
	item := &model.Item{BasePrice: 100}

	s.mockRandom.QueueFloat64(0, 0.999, 0.25)
	random := bot.NewRandomStrategy(s.mockRandom)
	s.Equal(50.0, random.Estimate(item))
	s.InDelta(149.9, random.Estimate(item), 0.01)
	s.Equal(75.0, random.Estimate(item))

	s.mockRandom.QueueFloat64(0, 0.5)
	anchor := bot.NewAnchorStrategy(s.mockRandom)
	s.Equal(90.0, anchor.Estimate(item))
	s.Equal(100.0, anchor.Estimate(item))
}

func (s *ServiceSuite) TestAddBotInLobbyDoesNotSubmit() {
	session, host := s.newSession()

	b, err := s.botService.AddBot(s.ctx, session.ID, host, model.BotStrategyAnchor)
	s.Require().NoError(err)
	s.True(b.IsBot)
	s.Equal(model.BotStrategyAnchor, b.BotStrategy)

	state, err := s.gameController.GetSessionState(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Nil(state.GetPlayer(b.ID).LastEstimation)
}

func (s *ServiceSuite) TestAddBotRejectsUnknownStrategy() {
	session, host := s.newSession()

	_, err := s.botService.AddBot(s.ctx, session.ID, host, "psychic")
	s.ErrorIs(err, model.ErrUnknownStrategy)
}

func (s *ServiceSuite) TestAddBotRequiresHost() {
	session, _ := s.newSession()
	_, guest, err := s.gameController.JoinSession(s.ctx, string(session.Code), "Guest")
	s.Require().NoError(err)

	_, err = s.botService.AddBot(s.ctx, session.ID, guest.ID, model.BotStrategyRandom)
	s.ErrorIs(err, model.ErrUnauthorized)
}

func (s *ServiceSuite) TestBotsSubmitAfterStart() {
	session, host := s.newSession()
	b1, err := s.botService.AddBot(s.ctx, session.ID, host, model.BotStrategyAnchor)
	s.Require().NoError(err)
	b2, err := s.botService.AddBot(s.ctx, session.ID, host, model.BotStrategyRandom)
	s.Require().NoError(err)

	_, err = s.gameController.StartRound(s.ctx, session.ID, host)
	s.Require().NoError(err)

	s.mockRandom.QueueFloat64(0.5, 0.1)
	actions, err := s.botService.ProcessBotActions(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(actions, 2)
	s.Equal(bot.BotAction{PlayerID: b1.ID, Value: 100}, actions[0])
	s.Equal(bot.BotAction{PlayerID: b2.ID, Value: 60}, actions[1])

	state, err := s.gameController.GetSessionState(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusEstimation, state.Status, "the human host has not submitted")

	again, err := s.botService.ProcessBotActions(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(again, "bots submit once per round")

	state, err = s.gameController.SubmitEstimation(s.ctx, session.ID, host, 95)
	s.Require().NoError(err)
	s.Equal(model.StatusResults, state.Status)
	// sorted 60 95 100: host holds the median
	s.Equal(25, state.GetPlayer(host).Score)
}

func (s *ServiceSuite) TestBotAddedDuringRoundSubmitsImmediately() {
	session, host := s.newSession()
	_, _, err := s.gameController.JoinSession(s.ctx, string(session.Code), "Guest")
	s.Require().NoError(err)
	_, err = s.gameController.StartRound(s.ctx, session.ID, host)
	s.Require().NoError(err)

	b, err := s.botService.AddBot(s.ctx, session.ID, host, model.BotStrategyAnchor)
	s.Require().NoError(err)

	state, err := s.gameController.GetSessionState(s.ctx, session.ID)
	s.Require().NoError(err)
	s.NotNil(state.GetPlayer(b.ID).LastEstimation)
}

func (s *ServiceSuite) TestProcessOutsideRoundDoesNothing() {
	session, _ := s.newSession()

	actions, err := s.botService.ProcessBotActions(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(actions)
}
