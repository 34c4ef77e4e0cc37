package realtime

import (
	"time"

	"github.com/mcoot/estimategame/internal/model"
)

// Client is one attached observer of a session. It holds at most one
// undelivered snapshot: a newer snapshot replaces an unread older one.
type Client struct {
	hub         *Hub
	playerID    model.PlayerID
	send        chan model.Snapshot
	connectedAt time.Time
}

// NewClient creates a new client for the hub
func NewClient(hub *Hub, playerID model.PlayerID) *Client {
	return &Client{
		hub:         hub,
		playerID:    playerID,
		send:        make(chan model.Snapshot, 1),
		connectedAt: time.Now(),
	}
}

// Updates returns the channel of live snapshots. It is closed when the
// client is unsubscribed or its hub shuts down.
func (c *Client) Updates() <-chan model.Snapshot {
	return c.send
}

// PlayerID returns the player this client belongs to
func (c *Client) PlayerID() model.PlayerID {
	return c.playerID
}

// offer hands a snapshot to the client, replacing any unread one.
// Only the hub loop sends, under the hub's read lock. Reports whether the
// mailbox was empty.
func (c *Client) offer(snapshot model.Snapshot) bool {
	select {
	case c.send <- snapshot:
		return true
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- snapshot:
	default:
	}
	return false
}
