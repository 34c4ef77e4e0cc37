package model

import "time"

// Credential binds a player token to a player. Only the bcrypt hash of
// the secret is stored.
type Credential struct {
	PlayerID   PlayerID
	SessionID  SessionID
	SecretHash string
	CreatedAt  time.Time
}
