package storage

import (
	"context"

	"github.com/mcoot/estimategame/internal/model"
)

// Storage defines the interface for data persistence.
//
// SaveSession is a compare-and-set on Session.Version: a session with
// Version 1 is inserted and must not exist yet (its code must be free too),
// any later version replaces the stored session only if the stored version
// is exactly one lower. Otherwise model.ErrConcurrentUpdate is returned and
// nothing is written.
type Storage interface {
	// Session operations
	SaveSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	GetSessionByCode(ctx context.Context, code model.SessionCode) (*model.Session, error)
	SessionCodeExists(ctx context.Context, code model.SessionCode) (bool, error)
	DeleteSession(ctx context.Context, id model.SessionID) error

	// Credential operations
	SaveCredential(ctx context.Context, cred *model.Credential) error
	GetCredential(ctx context.Context, playerID model.PlayerID) (*model.Credential, error)

	Close() error
}
