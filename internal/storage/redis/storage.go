package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Sessions are stored as JSON documents; SaveSession uses WATCH/MULTI so
// several server instances can share one Redis safely.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// storedVersion is decoded instead of the full document when only the
// version is needed for the compare-and-set
type storedVersion struct {
	Version int64
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	key := sessionKey(session.ID)
	idxKey := codeIndexKey(session.Code)

	txf := func(tx *redis.Tx) error {
		if session.Version == 1 {
			n, err := tx.Exists(ctx, key, idxKey).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return model.ErrConcurrentUpdate
			}
		} else {
			current, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return model.ErrSessionNotFound
				}
				return err
			}
			var stored storedVersion
			if err := json.Unmarshal(current, &stored); err != nil {
				return err
			}
			if stored.Version != session.Version-1 {
				return model.ErrConcurrentUpdate
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.cfg.SessionTTL)
			pipe.Set(ctx, idxKey, string(session.ID), s.cfg.SessionTTL)
			for _, p := range session.Players {
				pipe.Expire(ctx, credentialKey(p.ID), s.cfg.SessionTTL)
			}
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key, idxKey)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrConcurrentUpdate
	}
	return err
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) GetSessionByCode(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	id, err := s.client.Get(ctx, codeIndexKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	return s.GetSession(ctx, model.SessionID(id))
}

func (s *Storage) SessionCodeExists(ctx context.Context, code model.SessionCode) (bool, error) {
	exists, err := s.client.Exists(ctx, codeIndexKey(code)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.Del(ctx, codeIndexKey(session.Code))
	for _, p := range session.Players {
		pipe.Del(ctx, credentialKey(p.ID))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, credentialKey(cred.PlayerID), data, s.cfg.SessionTTL).Err()
}

func (s *Storage) GetCredential(ctx context.Context, playerID model.PlayerID) (*model.Credential, error) {
	data, err := s.client.Get(ctx, credentialKey(playerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var cred model.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}
