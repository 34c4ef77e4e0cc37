package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/estimategame/internal/dependencies/mocks"
	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/services/catalog"
	"github.com/mcoot/estimategame/internal/services/registry"
	"github.com/mcoot/estimategame/internal/services/scoring"
	"github.com/mcoot/estimategame/internal/storage"
	"github.com/mcoot/estimategame/internal/storage/memory"
	"github.com/mcoot/estimategame/internal/testutil"
)

// gatedStorage holds GetSession callers until a set number of them have
// read, so controllers on different instances act on the same version.
type gatedStorage struct {
	*memory.Storage

	mu      sync.Mutex
	waiting int
	release chan struct{}
}

func (g *gatedStorage) gate(readers int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waiting = readers
	g.release = make(chan struct{})
}

func (g *gatedStorage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	session, err := g.Storage.GetSession(ctx, id)

	g.mu.Lock()
	if g.waiting == 0 {
		g.mu.Unlock()
		return session, err
	}
	g.waiting--
	release := g.release
	if g.waiting == 0 {
		close(release)
	}
	g.mu.Unlock()

	select {
	case <-release:
	case <-ctx.Done():
	}
	return session, err
}

// conflictingStorage rejects every update of an existing session
type conflictingStorage struct {
	*memory.Storage

	mu    sync.Mutex
	saves int
}

func (c *conflictingStorage) SaveSession(ctx context.Context, session *model.Session) error {
	if session.Version == 1 {
		return c.Storage.SaveSession(ctx, session)
	}
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return model.ErrConcurrentUpdate
}

type InstancesSuite struct {
	suite.Suite
	storage   *gatedStorage
	clock     *mocks.MockClock
	a, b      *Controller
	recorderA *testutil.SnapshotRecorder
	recorderB *testutil.SnapshotRecorder
	ctx       context.Context
}

func TestInstancesSuite(t *testing.T) {
	suite.Run(t, new(InstancesSuite))
}

func (s *InstancesSuite) SetupTest() {
	s.storage = &gatedStorage{Storage: memory.New()}
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.recorderA = testutil.NewSnapshotRecorder()
	s.recorderB = testutil.NewSnapshotRecorder()
	s.a = s.newController(s.storage, s.recorderA)
	s.b = s.newController(s.storage, s.recorderB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	s.T().Cleanup(cancel)
	s.ctx = ctx
}

func (s *InstancesSuite) newController(store storage.Storage, publisher Publisher) *Controller {
	random := mocks.NewMockRandom()
	items := catalog.New(random)
	s.Require().NoError(items.LoadItems([]model.Item{
		{ID: "item-a", Names: map[string]string{"en": "A"}, BasePrice: 10},
		{ID: "item-b", Names: map[string]string{"en": "B"}, BasePrice: 20},
	}))
	return NewController(
		store,
		registry.New(s.clock),
		scoring.New(),
		items,
		publisher,
		s.clock,
		random,
		testutil.NopLogger(),
	)
}

// openRound creates a session on instance a with two guests joined through
// instance b, and starts a round
func (s *InstancesSuite) openRound() (model.SessionID, model.PlayerID, []model.PlayerID) {
	session, host, err := s.a.CreateSession(s.ctx, "Host")
	s.Require().NoError(err)

	var guests []model.PlayerID
	for _, name := range []string{"Bob", "Carol"} {
		s.clock.Advance(time.Second)
		_, p, err := s.b.JoinSession(s.ctx, string(session.Code), name)
		s.Require().NoError(err)
		guests = append(guests, p.ID)
	}

	_, err = s.a.StartRound(s.ctx, session.ID, host.ID)
	s.Require().NoError(err)
	return session.ID, host.ID, guests
}

func (s *InstancesSuite) both(fa, fb func() (*model.Session, error)) [2]*model.Session {
	var (
		wg   sync.WaitGroup
		out  [2]*model.Session
		errs [2]error
	)
	for i, fn := range []func() (*model.Session, error){fa, fb} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i], errs[i] = fn()
		}()
	}
	wg.Wait()
	s.Require().NoError(errs[0])
	s.Require().NoError(errs[1])
	return out
}

func (s *InstancesSuite) resultSnapshots(id model.SessionID) int {
	n := 0
	for _, rec := range []*testutil.SnapshotRecorder{s.recorderA, s.recorderB} {
		for _, snap := range rec.ForSession(id) {
			if snap.Status == model.StatusResults {
				n++
			}
		}
	}
	return n
}

func (s *InstancesSuite) TestSubmissionsOnDifferentInstancesAreBothKept() {
	id, host, guests := s.openRound()
	_, err := s.a.SubmitEstimation(s.ctx, id, host, 10)
	s.Require().NoError(err)
	before, err := s.storage.GetSession(s.ctx, id)
	s.Require().NoError(err)

	s.storage.gate(2)
	s.both(
		func() (*model.Session, error) { return s.a.SubmitEstimation(s.ctx, id, guests[0], 20) },
		func() (*model.Session, error) { return s.b.SubmitEstimation(s.ctx, id, guests[1], 15) },
	)

	after, err := s.storage.GetSession(s.ctx, id)
	s.Require().NoError(err)
	s.NoError(after.Validate())
	s.Equal(before.Version+2, after.Version)
	s.Equal(model.StatusResults, after.Status)
	s.Require().NotNil(after.LastResult)
	s.Equal(3, after.LastResult.Submissions, "no submission lost")
	s.Equal(1, s.resultSnapshots(id))
}

func (s *InstancesSuite) TestForceCloseOnBothInstancesScoresOnce() {
	id, host, guests := s.openRound()
	_, err := s.a.SubmitEstimation(s.ctx, id, host, 10)
	s.Require().NoError(err)
	_, err = s.b.SubmitEstimation(s.ctx, id, guests[0], 12)
	s.Require().NoError(err)
	before, err := s.storage.GetSession(s.ctx, id)
	s.Require().NoError(err)

	s.storage.gate(2)
	closed := s.both(
		func() (*model.Session, error) { return s.a.ForceCloseRound(s.ctx, id, host) },
		func() (*model.Session, error) { return s.b.ForceCloseRound(s.ctx, id, host) },
	)

	s.Equal(before.Version+1, closed[0].Version)
	s.Equal(closed[0].Version, closed[1].Version, "the losing close is a no-op")
	s.Equal(model.StatusResults, closed[1].Status)

	after, err := s.storage.GetSession(s.ctx, id)
	s.Require().NoError(err)
	scores := map[model.PlayerID]int{}
	for _, p := range after.Players {
		scores[p.ID] = p.Score
	}
	s.Equal(map[model.PlayerID]int{host: 25, guests[0]: 5, guests[1]: 0}, scores)
	s.Equal(1, s.resultSnapshots(id))
}

func (s *InstancesSuite) TestJoinsOnDifferentInstancesAreBothKept() {
	session, _, err := s.a.CreateSession(s.ctx, "Host")
	s.Require().NoError(err)

	s.storage.gate(2)
	var ids [2]model.PlayerID
	s.both(
		func() (*model.Session, error) {
			joined, p, err := s.a.JoinSession(s.ctx, string(session.Code), "Bob")
			if p != nil {
				ids[0] = p.ID
			}
			return joined, err
		},
		func() (*model.Session, error) {
			joined, p, err := s.b.JoinSession(s.ctx, string(session.Code), "Carol")
			if p != nil {
				ids[1] = p.ID
			}
			return joined, err
		},
	)

	after, err := s.storage.GetSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Len(after.Players, 3)
	s.NotNil(after.GetPlayer(ids[0]))
	s.NotNil(after.GetPlayer(ids[1]))
}

func (s *InstancesSuite) TestPersistentConflictGivesUp() {
	store := &conflictingStorage{Storage: memory.New()}
	recorder := testutil.NewSnapshotRecorder()
	controller := s.newController(store, recorder)

	session, host, err := controller.CreateSession(s.ctx, "Host")
	s.Require().NoError(err)

	_, err = controller.StartRound(s.ctx, session.ID, host.ID)
	s.ErrorIs(err, model.ErrConcurrentUpdate)
	s.Equal(maxSaveAttempts, store.saves)
	s.Len(recorder.ForSession(session.ID), 1, "only the create was published")

	stored, err := store.GetSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusLobby, stored.Status)
}
