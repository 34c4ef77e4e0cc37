package model

import "slices"

// RoundResult is the outcome of scoring one round. Winners is exactly the
// set of players that received the proximity bonus.
type RoundResult struct {
	Round       int
	ItemID      ItemID
	Median      float64
	Min         float64
	Max         float64
	Submissions int
	Winners     []PlayerID
	Entries     []ResultEntry
}

// ResultEntry is one player's line in a round result
type ResultEntry struct {
	PlayerID   PlayerID
	Estimation *float64 // nil when the player did not submit
	Extreme    bool
	Delta      int
}

// IsWinner reports whether the player is among the round winners
func (r *RoundResult) IsWinner(id PlayerID) bool {
	return slices.Contains(r.Winners, id)
}

// Entry returns the entry of the given player, or nil
func (r *RoundResult) Entry(id PlayerID) *ResultEntry {
	for i := range r.Entries {
		if r.Entries[i].PlayerID == id {
			return &r.Entries[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the result
func (r *RoundResult) Clone() *RoundResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Winners = slices.Clone(r.Winners)
	c.Entries = make([]ResultEntry, len(r.Entries))
	for i, e := range r.Entries {
		e.Estimation = clonePtr(e.Estimation)
		c.Entries[i] = e
	}
	return &c
}
