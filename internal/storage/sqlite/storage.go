package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/storage"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Storage is a SQLite-backed implementation of the storage interface.
// Each session is one row holding the JSON document, with the version
// column used for the compare-and-set.
type Storage struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations
func Open(path string) (*Storage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path
	if path != MemoryPath {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps an
	// in-memory database alive for the lifetime of the pool
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Storage{db: db}, nil
}

// Close closes the database handle
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return err
	}

	if session.Version == 1 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, code, status, version, document, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT DO NOTHING`,
			string(session.ID), string(session.Code), string(session.Status), session.Version,
			string(doc), toMillis(session.CreatedAt), toMillis(session.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return requireOneRow(res, model.ErrConcurrentUpdate)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, version = ?, document = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(session.Status), session.Version, string(doc), toMillis(session.UpdatedAt),
		string(session.ID), session.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if err := requireOneRow(res, model.ErrConcurrentUpdate); err != nil {
		if _, getErr := s.GetSession(ctx, session.ID); errors.Is(getErr, model.ErrSessionNotFound) {
			return model.ErrSessionNotFound
		}
		return err
	}
	return nil
}

func requireOneRow(res sql.Result, otherwise error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return otherwise
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT document FROM sessions WHERE id = ?`, string(id))
	return scanSession(row)
}

func (s *Storage) GetSessionByCode(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT document FROM sessions WHERE code = ?`, string(code))
	return scanSession(row)
}

func scanSession(row *sql.Row) (*model.Session, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	var session model.Session
	if err := json.Unmarshal([]byte(doc), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *Storage) SessionCodeExists(ctx context.Context, code model.SessionCode) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE code = ?`, string(code)).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE session_id = ?`, string(id)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, string(id)); err != nil {
		return err
	}
	return tx.Commit()
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (player_id, session_id, secret_hash, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (player_id) DO UPDATE SET
		   session_id = excluded.session_id,
		   secret_hash = excluded.secret_hash,
		   created_at = excluded.created_at`,
		string(cred.PlayerID), string(cred.SessionID), cred.SecretHash, toMillis(cred.CreatedAt),
	)
	return err
}

func (s *Storage) GetCredential(ctx context.Context, playerID model.PlayerID) (*model.Credential, error) {
	var (
		cred      model.Credential
		sessionID string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, secret_hash, created_at FROM credentials WHERE player_id = ?`,
		string(playerID),
	).Scan(&sessionID, &cred.SecretHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	cred.PlayerID = playerID
	cred.SessionID = model.SessionID(sessionID)
	cred.CreatedAt = fromMillis(createdAt)
	return &cred, nil
}
