package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini  *miniredis.Miniredis
	redis *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.SessionTTL = time.Hour

	s.redis = NewWithClient(client, cfg)
	s.Storage = s.redis
	s.Ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestSessionKeysHaveTTL() {
	session := storagetest.NewSession("session-1", "ABCD")
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, session))

	s.Equal(time.Hour, s.mini.TTL(sessionKey("session-1")))
	s.Equal(time.Hour, s.mini.TTL(codeIndexKey("ABCD")))
}

func (s *StorageSuite) TestSaveRefreshesCredentialTTL() {
	session := storagetest.NewSession("session-1", "ABCD")
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, session))
	s.Require().NoError(s.Storage.SaveCredential(s.Ctx, &model.Credential{
		PlayerID: session.Players[0].ID, SessionID: session.ID, SecretHash: "hash",
	}))

	s.mini.FastForward(30 * time.Minute)
	s.Equal(30*time.Minute, s.mini.TTL(credentialKey(session.Players[0].ID)))

	session.Version = 2
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, session))
	s.Equal(time.Hour, s.mini.TTL(credentialKey(session.Players[0].ID)))
}

func (s *StorageSuite) TestExpiredSessionIsGone() {
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, storagetest.NewSession("session-1", "ABCD")))

	s.mini.FastForward(2 * time.Hour)

	_, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.ErrorIs(err, model.ErrSessionNotFound)
	_, err = s.Storage.GetSessionByCode(s.Ctx, "ABCD")
	s.ErrorIs(err, model.ErrSessionNotFound)
}
