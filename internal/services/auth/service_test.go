package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/estimategame/internal/dependencies/mocks"
	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/storage/memory"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
	player  *model.Player
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.clock, Config{BcryptCost: bcrypt.MinCost, CacheDuration: time.Minute})
	s.ctx = context.Background()
	s.player = &model.Player{ID: "player-1", SessionID: "session-1", Nickname: "Alice"}
}

func (s *ServiceSuite) issue() string {
	token, err := s.service.IssueToken(s.ctx, s.player)
	s.Require().NoError(err)
	return token
}

func (s *ServiceSuite) TestIssueTokenFormat() {
	token := s.issue()

	s.True(strings.HasPrefix(token, "player-1."))
	s.Greater(len(token), len("player-1.")+40)
}

func (s *ServiceSuite) TestIssueTokenStoresOnlyHash() {
	token := s.issue()

	cred, err := s.storage.GetCredential(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(model.SessionID("session-1"), cred.SessionID)
	_, secret, _ := strings.Cut(token, ".")
	s.NotContains(cred.SecretHash, secret)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)))
}

func (s *ServiceSuite) TestValidateFromCache() {
	token := s.issue()

	identity, err := s.service.Validate(s.ctx, token)
	s.Require().NoError(err)
	s.Equal(Identity{PlayerID: "player-1", SessionID: "session-1"}, *identity)
}

func (s *ServiceSuite) TestValidateAfterCacheExpiryUsesStorage() {
	token := s.issue()
	s.clock.Advance(2 * time.Minute)
	s.service.CleanExpiredCache()
	s.Equal(0, s.service.cacheSize())

	identity, err := s.service.Validate(s.ctx, token)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), identity.PlayerID)
	s.Equal(1, s.service.cacheSize())
}

func (s *ServiceSuite) TestValidateFromAnotherInstance() {
	token := s.issue()

	other := New(s.storage, s.clock, Config{BcryptCost: bcrypt.MinCost})
	identity, err := other.Validate(s.ctx, token)
	s.Require().NoError(err)
	s.Equal(model.SessionID("session-1"), identity.SessionID)
}

func (s *ServiceSuite) TestValidateRejectsBadTokens() {
	token := s.issue()
	s.service.InvalidateToken(token)

	for _, bad := range []string{"", "garbage", "player-1.", ".secret", "player-1.wrongsecret", "player-2." + strings.SplitN(token, ".", 2)[1]} {
		_, err := s.service.Validate(s.ctx, bad)
		s.ErrorIs(err, model.ErrInvalidToken, "token %q", bad)
	}
}

func (s *ServiceSuite) TestReissueRevokesPreviousToken() {
	first := s.issue()
	second := s.issue()
	s.service.InvalidateToken(first)

	_, err := s.service.Validate(s.ctx, first)
	s.ErrorIs(err, model.ErrInvalidToken)

	_, err = s.service.Validate(s.ctx, second)
	s.NoError(err)
}
