package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// SessionID uniquely identifies a session
type SessionID string

// SessionCode is the short human-shareable token used to join a session
type SessionCode string

// NormalizeSessionCode makes join codes case-insensitive
func NormalizeSessionCode(code string) SessionCode {
	return SessionCode(strings.ToUpper(strings.TrimSpace(code)))
}

// SessionStatus is the phase of a session
type SessionStatus string

const (
	StatusLobby      SessionStatus = "LOBBY"
	StatusEstimation SessionStatus = "ESTIMATION"
	StatusResults    SessionStatus = "RESULTS"
	StatusFinished   SessionStatus = "FINISHED"
)

// HasItem reports whether a session in this status must reference an item
func (s SessionStatus) HasItem() bool {
	return s == StatusEstimation || s == StatusResults
}

// Session is the aggregate owned by the state machine: the phase, the
// current item, the player roster and the latest round result.
type Session struct {
	ID            SessionID
	Code          SessionCode
	Status        SessionStatus
	CurrentItemID *ItemID
	// PreviousItemID is the item of the last round, used to avoid repeats
	PreviousItemID *ItemID
	Round          int
	Players        []Player // ordered by JoinedAt
	LastResult     *RoundResult
	// Version increments on every committed mutation
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetHost returns the host player, or nil if none
func (s *Session) GetHost() *Player {
	for i := range s.Players {
		if s.Players[i].IsHost {
			return &s.Players[i]
		}
	}
	return nil
}

// GetPlayer returns the player with the given ID, or nil if not found
func (s *Session) GetPlayer(id PlayerID) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// IsHost reports whether the given player is the session host
func (s *Session) IsHost(id PlayerID) bool {
	p := s.GetPlayer(id)
	return p != nil && p.IsHost
}

// AllSubmitted reports whether every registered player has an estimation.
// An empty roster never counts as complete.
func (s *Session) AllSubmitted() bool {
	if len(s.Players) == 0 {
		return false
	}
	for i := range s.Players {
		if !s.Players[i].HasSubmitted() {
			return false
		}
	}
	return true
}

// SubmittedCount returns how many players have an estimation this round
func (s *Session) SubmittedCount() int {
	n := 0
	for i := range s.Players {
		if s.Players[i].HasSubmitted() {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants of the aggregate
func (s *Session) Validate() error {
	if s.Status.HasItem() != (s.CurrentItemID != nil) {
		return fmt.Errorf("session %s: status %s with current item %v", s.ID, s.Status, s.CurrentItemID)
	}
	hosts := 0
	for i := range s.Players {
		if s.Players[i].IsHost {
			hosts++
		}
	}
	if hosts != 1 {
		return fmt.Errorf("session %s: expected exactly one host, found %d", s.ID, hosts)
	}
	return nil
}

// Clone returns a deep copy, so callers can mutate without touching shared state
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.CurrentItemID = clonePtr(s.CurrentItemID)
	c.PreviousItemID = clonePtr(s.PreviousItemID)
	c.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.LastEstimation = clonePtr(p.LastEstimation)
		c.Players[i] = p
	}
	c.LastResult = s.LastResult.Clone()
	return &c
}

// SortPlayers orders the roster by JoinedAt, keeping insertion order for ties
func (s *Session) SortPlayers() {
	slices.SortStableFunc(s.Players, func(a, b Player) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
