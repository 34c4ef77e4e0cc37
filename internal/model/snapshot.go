package model

import "time"

// Snapshot is the full observable state of a session. It is what observers
// receive on every committed change, and what a reconnecting observer reads
// to resynchronize. Applying the same snapshot twice is a no-op.
type Snapshot struct {
	SessionID     SessionID        `json:"session_id"`
	Code          SessionCode      `json:"code"`
	Version       int64            `json:"version"`
	Status        SessionStatus    `json:"status"`
	CurrentItemID *ItemID          `json:"current_item_id"`
	Round         int              `json:"round"`
	Players       []PlayerSnapshot `json:"players"`
	Result        *ResultSnapshot  `json:"result,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PlayerSnapshot is the public view of a player
type PlayerSnapshot struct {
	ID             PlayerID  `json:"id"`
	Nickname       string    `json:"nickname"`
	Score          int       `json:"score"`
	IsHost         bool      `json:"is_host"`
	IsBot          bool      `json:"is_bot,omitempty"`
	HasSubmitted   bool      `json:"has_submitted"`
	LastEstimation *float64  `json:"last_estimation"`
	IsOnline       bool      `json:"is_online"`
	JoinedAt       time.Time `json:"joined_at"`
}

// ResultSnapshot is the public view of the latest round result
type ResultSnapshot struct {
	Round       int                   `json:"round"`
	ItemID      ItemID                `json:"item_id"`
	Median      float64               `json:"median"`
	Min         float64               `json:"min"`
	Max         float64               `json:"max"`
	Submissions int                   `json:"submissions"`
	Winners     []PlayerID            `json:"winners"`
	Entries     []ResultEntrySnapshot `json:"entries"`
}

// ResultEntrySnapshot is one line of the result view
type ResultEntrySnapshot struct {
	PlayerID   PlayerID `json:"player_id"`
	Estimation *float64 `json:"estimation"`
	Extreme    bool     `json:"extreme"`
	Delta      int      `json:"delta"`
}

// Snapshot builds the observable state of the session.
// Estimations stay hidden while the round is open.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:     s.ID,
		Code:          s.Code,
		Version:       s.Version,
		Status:        s.Status,
		CurrentItemID: clonePtr(s.CurrentItemID),
		Round:         s.Round,
		Players:       make([]PlayerSnapshot, 0, len(s.Players)),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	reveal := s.Status != StatusEstimation
	for _, p := range s.Players {
		ps := PlayerSnapshot{
			ID:           p.ID,
			Nickname:     p.Nickname,
			Score:        p.Score,
			IsHost:       p.IsHost,
			IsBot:        p.IsBot,
			HasSubmitted: p.HasSubmitted(),
			JoinedAt:     p.JoinedAt,
		}
		if reveal {
			ps.LastEstimation = clonePtr(p.LastEstimation)
		}
		snap.Players = append(snap.Players, ps)
	}
	if r := s.LastResult; r != nil && (s.Status == StatusResults || s.Status == StatusFinished) {
		rs := &ResultSnapshot{
			Round:       r.Round,
			ItemID:      r.ItemID,
			Median:      r.Median,
			Min:         r.Min,
			Max:         r.Max,
			Submissions: r.Submissions,
			Winners:     append([]PlayerID{}, r.Winners...),
			Entries:     make([]ResultEntrySnapshot, 0, len(r.Entries)),
		}
		for _, e := range r.Entries {
			rs.Entries = append(rs.Entries, ResultEntrySnapshot{
				PlayerID:   e.PlayerID,
				Estimation: clonePtr(e.Estimation),
				Extreme:    e.Extreme,
				Delta:      e.Delta,
			})
		}
		snap.Result = rs
	}
	return snap
}

// WithPresence returns a copy of the snapshot with IsOnline set from the
// given set of connected players
func (s Snapshot) WithPresence(online map[PlayerID]bool) Snapshot {
	players := make([]PlayerSnapshot, len(s.Players))
	for i, p := range s.Players {
		p.IsOnline = p.IsBot || online[p.ID]
		players[i] = p
	}
	s.Players = players
	return s
}
