package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// PlayerID uniquely identifies a player across the system
type PlayerID string

// MaxNicknameLength bounds display names, counted in runes
const MaxNicknameLength = 32

// Player is a participant in exactly one session
type Player struct {
	ID        PlayerID
	SessionID SessionID
	Nickname  string
	Score     int
	IsHost    bool // fixed at session creation, never transferred
	IsBot     bool
	// BotStrategy is only set for bots
	BotStrategy string
	// LastEstimation is nil until the player submits in the current round
	LastEstimation *float64
	JoinedAt       time.Time
}

// HasSubmitted reports whether the player has an estimation for the current round
func (p *Player) HasSubmitted() bool {
	return p.LastEstimation != nil
}

// NormalizeNickname trims the nickname and validates its length
func NormalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	n := utf8.RuneCountInString(nickname)
	if n == 0 || n > MaxNicknameLength {
		return "", ErrInvalidNickname
	}
	return nickname, nil
}
