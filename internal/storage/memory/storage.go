package memory

import (
	"context"
	"sync"

	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Sessions are copied on the way in and out.
type Storage struct {
	mu sync.RWMutex

	sessions    map[model.SessionID]*model.Session
	codeIndex   map[model.SessionCode]model.SessionID
	credentials map[model.PlayerID]*model.Credential
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		sessions:    make(map[model.SessionID]*model.Session),
		codeIndex:   make(map[model.SessionCode]model.SessionID),
		credentials: make(map[model.PlayerID]*model.Credential),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[session.ID]
	switch {
	case session.Version == 1:
		if ok {
			return model.ErrConcurrentUpdate
		}
		if _, taken := s.codeIndex[session.Code]; taken {
			return model.ErrConcurrentUpdate
		}
	case !ok:
		return model.ErrSessionNotFound
	case existing.Version != session.Version-1:
		return model.ErrConcurrentUpdate
	}

	s.sessions[session.ID] = session.Clone()
	s.codeIndex[session.Code] = session.ID
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) GetSessionByCode(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codeIndex[code]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) SessionCodeExists(ctx context.Context, code model.SessionCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codeIndex[code]
	return ok, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		delete(s.codeIndex, session.Code)
		for _, p := range session.Players {
			delete(s.credentials, p.ID)
		}
	}
	delete(s.sessions, id)
	return nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cred
	s.credentials[cred.PlayerID] = &c
	return nil
}

func (s *Storage) GetCredential(ctx context.Context, playerID model.PlayerID) (*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	c := *cred
	return &c, nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}
