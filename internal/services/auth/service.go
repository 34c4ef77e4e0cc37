package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/estimategame/internal/dependencies/clock"
	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/storage"
)

// Identity is what a valid token resolves to
type Identity struct {
	PlayerID  model.PlayerID
	SessionID model.SessionID
}

type cachedIdentity struct {
	identity  Identity
	expiresAt time.Time
}

// Service issues and validates player tokens.
//
// A token is "<player id>.<secret>". Only a bcrypt hash of the secret is
// stored, so any instance sharing the storage can validate it. Validated
// tokens are cached in memory to avoid a bcrypt comparison per request.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	cfg     Config

	mu    sync.RWMutex
	cache map[string]*cachedIdentity
}

// Config holds configuration for the auth service
type Config struct {
	// BcryptCost is the cost used to hash token secrets
	BcryptCost int
	// CacheDuration bounds how long a validated token skips storage
	CacheDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost:    bcrypt.DefaultCost,
		CacheDuration: 10 * time.Minute,
	}
}

// New creates a new AuthService
func New(storage storage.Storage, clock clock.Clock, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	if cfg.CacheDuration == 0 {
		cfg.CacheDuration = DefaultConfig().CacheDuration
	}
	return &Service{
		storage: storage,
		clock:   clock,
		cfg:     cfg,
		cache:   make(map[string]*cachedIdentity),
	}
}

// IssueToken creates a new token for the player, replacing any previous one
func (s *Service) IssueToken(ctx context.Context, player *model.Player) (string, error) {
	secret := generateSecret()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}

	cred := &model.Credential{
		PlayerID:   player.ID,
		SessionID:  player.SessionID,
		SecretHash: string(hash),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.storage.SaveCredential(ctx, cred); err != nil {
		return "", err
	}

	token := string(player.ID) + "." + secret
	s.remember(token, Identity{PlayerID: player.ID, SessionID: player.SessionID})
	return token, nil
}

// Validate resolves a token to the identity it was issued for
func (s *Service) Validate(ctx context.Context, token string) (*Identity, error) {
	now := s.clock.Now()

	s.mu.RLock()
	cached, ok := s.cache[token]
	s.mu.RUnlock()
	if ok && now.Before(cached.expiresAt) {
		identity := cached.identity
		return &identity, nil
	}

	playerID, secret, found := strings.Cut(token, ".")
	if !found || playerID == "" || secret == "" {
		return nil, model.ErrInvalidToken
	}

	cred, err := s.storage.GetCredential(ctx, model.PlayerID(playerID))
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			s.forget(token)
			return nil, model.ErrInvalidToken
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)); err != nil {
		s.forget(token)
		return nil, model.ErrInvalidToken
	}

	identity := Identity{PlayerID: cred.PlayerID, SessionID: cred.SessionID}
	s.remember(token, identity)
	return &identity, nil
}

// InvalidateToken drops a token from the cache. The stored credential stays
// valid until the player is issued a new token.
func (s *Service) InvalidateToken(token string) {
	s.forget(token)
}

// CleanExpiredCache removes expired cache entries (call periodically)
func (s *Service) CleanExpiredCache() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, c := range s.cache {
		if !now.Before(c.expiresAt) {
			delete(s.cache, token)
		}
	}
}

func (s *Service) remember(token string, identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[token] = &cachedIdentity{
		identity:  identity,
		expiresAt: s.clock.Now().Add(s.cfg.CacheDuration),
	}
}

func (s *Service) forget(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, token)
}

func (s *Service) cacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// generateSecret returns 32 random bytes, base64url encoded
func generateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
