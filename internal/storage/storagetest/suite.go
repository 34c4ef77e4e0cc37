// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/storage"
)

// Suite runs the shared storage tests against the backend returned by New.
// Backends embed it in their own suite and set New in SetupTest.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// NewSession returns a valid version-1 session with a host and one guest
func NewSession(id model.SessionID, code model.SessionCode) *model.Session {
	return &model.Session{
		ID:      id,
		Code:    code,
		Status:  model.StatusLobby,
		Version: 1,
		Players: []model.Player{
			{ID: model.PlayerID(string(id) + "-host"), SessionID: id, Nickname: "Host", IsHost: true, JoinedAt: baseTime},
			{ID: model.PlayerID(string(id) + "-guest"), SessionID: id, Nickname: "Guest", JoinedAt: baseTime.Add(time.Second)},
		},
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func (s *Suite) save(session *model.Session) {
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, session))
}

func (s *Suite) TestSaveAndGetSession() {
	session := NewSession("session-1", "ABCD")
	s.save(session)

	got, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Equal(session.ID, got.ID)
	s.Equal(session.Code, got.Code)
	s.Equal(model.StatusLobby, got.Status)
	s.Equal(int64(1), got.Version)
	s.Require().Len(got.Players, 2)
	s.Equal("Host", got.Players[0].Nickname)
	s.True(got.Players[0].IsHost)
	s.Nil(got.Players[1].LastEstimation)
	s.True(session.CreatedAt.Equal(got.CreatedAt))
}

func (s *Suite) TestGetSessionNotFound() {
	_, err := s.Storage.GetSession(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrSessionNotFound)

	_, err = s.Storage.GetSessionByCode(s.Ctx, "ZZZZ")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestGetSessionByCode() {
	s.save(NewSession("session-1", "ABCD"))

	got, err := s.Storage.GetSessionByCode(s.Ctx, "ABCD")
	s.Require().NoError(err)
	s.Equal(model.SessionID("session-1"), got.ID)

	exists, err := s.Storage.SessionCodeExists(s.Ctx, "ABCD")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.Storage.SessionCodeExists(s.Ctx, "WXYZ")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *Suite) TestRoundTripsRoundState() {
	session := NewSession("session-1", "ABCD")
	s.save(session)

	item := model.ItemID("item-1")
	value := 12.5
	session.Version = 2
	session.Status = model.StatusResults
	session.CurrentItemID = &item
	session.Round = 1
	session.Players[0].LastEstimation = &value
	session.Players[0].Score = 25
	session.LastResult = &model.RoundResult{
		Round:   1,
		ItemID:  item,
		Median:  12.5,
		Winners: []model.PlayerID{session.Players[0].ID},
		Entries: []model.ResultEntry{{PlayerID: session.Players[0].ID, Estimation: &value, Delta: 25}},
	}
	s.save(session)

	got, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Equal(int64(2), got.Version)
	s.Equal(model.StatusResults, got.Status)
	s.Require().NotNil(got.CurrentItemID)
	s.Equal(item, *got.CurrentItemID)
	s.Require().NotNil(got.Players[0].LastEstimation)
	s.Equal(12.5, *got.Players[0].LastEstimation)
	s.Equal(25, got.Players[0].Score)
	s.Require().NotNil(got.LastResult)
	s.Equal([]model.PlayerID{session.Players[0].ID}, got.LastResult.Winners)
	s.Equal(25, got.LastResult.Entries[0].Delta)
}

func (s *Suite) TestStaleVersionRejected() {
	session := NewSession("session-1", "ABCD")
	s.save(session)

	next := session.Clone()
	next.Version = 2
	s.save(next)

	stale := session.Clone()
	stale.Version = 2
	stale.Status = model.StatusFinished
	err := s.Storage.SaveSession(s.Ctx, stale)
	s.ErrorIs(err, model.ErrConcurrentUpdate)

	skipped := session.Clone()
	skipped.Version = 5
	err = s.Storage.SaveSession(s.Ctx, skipped)
	s.ErrorIs(err, model.ErrConcurrentUpdate)

	got, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Equal(int64(2), got.Version)
	s.Equal(model.StatusLobby, got.Status)
}

func (s *Suite) TestDuplicateInsertRejected() {
	s.save(NewSession("session-1", "ABCD"))

	err := s.Storage.SaveSession(s.Ctx, NewSession("session-1", "EFGH"))
	s.ErrorIs(err, model.ErrConcurrentUpdate)

	err = s.Storage.SaveSession(s.Ctx, NewSession("session-2", "ABCD"))
	s.ErrorIs(err, model.ErrConcurrentUpdate, "code already taken")
}

func (s *Suite) TestUpdateMissingSession() {
	session := NewSession("session-1", "ABCD")
	session.Version = 3
	err := s.Storage.SaveSession(s.Ctx, session)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestConcurrentWritersOnlyOneWins() {
	session := NewSession("session-1", "ABCD")
	s.save(session)

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		okCount  int
		conflict int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := session.Clone()
			next.Version = 2
			next.Round = i + 1
			err := s.Storage.SaveSession(s.Ctx, next)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				okCount++
			} else if errors.Is(err, model.ErrConcurrentUpdate) {
				conflict++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, okCount)
	s.Equal(writers-1, conflict)
}

func (s *Suite) TestDeleteSession() {
	session := NewSession("session-1", "ABCD")
	s.save(session)
	s.Require().NoError(s.Storage.SaveCredential(s.Ctx, &model.Credential{
		PlayerID: session.Players[0].ID, SessionID: session.ID, SecretHash: "hash", CreatedAt: baseTime,
	}))

	s.Require().NoError(s.Storage.DeleteSession(s.Ctx, "session-1"))

	_, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.ErrorIs(err, model.ErrSessionNotFound)
	exists, err := s.Storage.SessionCodeExists(s.Ctx, "ABCD")
	s.Require().NoError(err)
	s.False(exists)
	_, err = s.Storage.GetCredential(s.Ctx, session.Players[0].ID)
	s.ErrorIs(err, model.ErrPlayerNotFound)

	s.NoError(s.Storage.DeleteSession(s.Ctx, "session-1"), "deleting twice is fine")
}

func (s *Suite) TestSaveAndGetCredential() {
	cred := &model.Credential{PlayerID: "player-1", SessionID: "session-1", SecretHash: "hash-1", CreatedAt: baseTime}
	s.Require().NoError(s.Storage.SaveCredential(s.Ctx, cred))

	got, err := s.Storage.GetCredential(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(model.SessionID("session-1"), got.SessionID)
	s.Equal("hash-1", got.SecretHash)
	s.True(baseTime.Equal(got.CreatedAt))

	cred.SecretHash = "hash-2"
	s.Require().NoError(s.Storage.SaveCredential(s.Ctx, cred))
	got, err = s.Storage.GetCredential(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("hash-2", got.SecretHash)
}

func (s *Suite) TestGetCredentialNotFound() {
	_, err := s.Storage.GetCredential(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}
