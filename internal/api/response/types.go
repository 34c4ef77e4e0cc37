package response

import (
	"github.com/mcoot/estimategame/internal/model"
)

// Player represents a player in API responses
type Player struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Nickname  string `json:"nickname"`
	Score     int    `json:"score"`
	IsHost    bool   `json:"is_host"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:        string(p.ID),
		SessionID: string(p.SessionID),
		Nickname:  p.Nickname,
		Score:     p.Score,
		IsHost:    p.IsHost,
		IsBot:     p.IsBot,
	}
}

// JoinResponse is returned when a player creates or joins a session.
// Token authenticates the player on later requests.
type JoinResponse struct {
	Session model.Snapshot `json:"session"`
	Player  Player         `json:"player"`
	Token   string         `json:"token"`
}

// MeResponse describes the authenticated player
type MeResponse struct {
	Player  Player         `json:"player"`
	Session model.Snapshot `json:"session"`
}

// Item is an item resolved for one language
type Item struct {
	ID        string `json:"id"`
	Language  string `json:"language"`
	Name      string `json:"name"`
	Adjective string `json:"adjective,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// ItemFromModel converts a model.ItemDisplay
func ItemFromModel(d *model.ItemDisplay) Item {
	return Item{
		ID:        string(d.ID),
		Language:  d.Language,
		Name:      d.Name,
		Adjective: d.Adjective,
		ImageURL:  d.ImageURL,
	}
}

// Health is the health check response
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
