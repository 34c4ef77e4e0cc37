package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/estimategame/internal/model"
)

const hubBufferSize = 256

type hubMessage struct {
	snapshot model.Snapshot
	// presence re-sends the latest snapshot with fresh online flags
	presence bool
}

// Hub fans out snapshots of a single session to its clients
type Hub struct {
	sessionID model.SessionID
	clients   map[*Client]bool
	online    map[model.PlayerID]int
	mu        sync.RWMutex
	logger    *slog.Logger

	broadcast chan hubMessage
	done      chan struct{}
	closeOnce sync.Once

	// owned by Run
	lastVersion int64
	latest      *model.Snapshot
}

// NewHub creates a new Hub for a session
func NewHub(sessionID model.SessionID, logger *slog.Logger) *Hub {
	return &Hub{
		sessionID: sessionID,
		clients:   make(map[*Client]bool),
		online:    make(map[model.PlayerID]int),
		logger:    logger.With(slog.String("session_id", string(sessionID))),
		broadcast: make(chan hubMessage, hubBufferSize),
		done:      make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("hub started")
	for {
		select {
		case msg := <-h.broadcast:
			snapshot := msg.snapshot
			if msg.presence {
				if h.latest == nil {
					continue
				}
				snapshot = *h.latest
			} else {
				if snapshot.Version <= h.lastVersion {
					h.logger.Debug("stale snapshot discarded",
						slog.Int64("version", snapshot.Version),
						slog.Int64("last_version", h.lastVersion))
					continue
				}
				h.lastVersion = snapshot.Version
				h.latest = &snapshot
			}
			h.deliver(snapshot)

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Debug("hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

func (h *Hub) deliver(snapshot model.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot = snapshot.WithPresence(h.onlineLocked())
	conflated := 0
	for client := range h.clients {
		if !client.offer(snapshot) {
			conflated++
		}
	}
	if conflated > 0 {
		h.logger.Debug("snapshots conflated for slow clients",
			slog.Int64("version", snapshot.Version),
			slog.Int("clients", conflated))
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	if client.playerID != "" {
		h.online[client.playerID]++
	}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client registered",
		slog.String("player_id", string(client.playerID)),
		slog.Int("total_clients", clientCount))
	h.refreshPresence()
}

// Unregister removes a client from the hub and closes its channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	if client.playerID != "" {
		h.online[client.playerID]--
		if h.online[client.playerID] <= 0 {
			delete(h.online, client.playerID)
		}
	}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client unregistered",
		slog.String("player_id", string(client.playerID)),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("total_clients", clientCount))
	h.refreshPresence()
}

// Publish queues a snapshot for delivery. Snapshots not newer than the last
// one delivered are dropped by the hub loop.
func (h *Hub) Publish(snapshot model.Snapshot) {
	select {
	case h.broadcast <- hubMessage{snapshot: snapshot}:
	case <-h.done:
	}
}

func (h *Hub) refreshPresence() {
	select {
	case h.broadcast <- hubMessage{presence: true}:
	case <-h.done:
	default:
		// a full buffer already holds a newer snapshot carrying presence
	}
}

// Online returns the players with at least one connected client
func (h *Hub) Online() map[model.PlayerID]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineLocked()
}

func (h *Hub) onlineLocked() map[model.PlayerID]bool {
	online := make(map[model.PlayerID]bool, len(h.online))
	for id := range h.online {
		online[id] = true
	}
	return online
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubManager manages hubs for all sessions. It implements game.Publisher.
type HubManager struct {
	hubs   map[model.SessionID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.SessionID]*Hub),
		logger: logger.With(slog.String("component", "realtime")),
	}
}

// Subscribe attaches a new client for the player to the session's hub,
// creating the hub if needed. An empty player ID is an anonymous observer.
func (m *HubManager) Subscribe(sessionID model.SessionID, playerID model.PlayerID) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.hubs[sessionID]
	if !ok {
		hub = NewHub(sessionID, m.logger)
		m.hubs[sessionID] = hub
		go hub.Run()
	}
	client := NewClient(hub, playerID)
	hub.Register(client)
	return client
}

// Unsubscribe detaches the client, removing its hub once empty
func (m *HubManager) Unsubscribe(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub := client.hub
	hub.Unregister(client)
	if hub.ClientCount() == 0 && m.hubs[hub.sessionID] == hub {
		hub.Close()
		delete(m.hubs, hub.sessionID)
		m.logger.Debug("hub removed", slog.String("session_id", string(hub.sessionID)))
	}
}

// Publish forwards a snapshot to the session's hub, if anyone is watching
func (m *HubManager) Publish(snapshot model.Snapshot) {
	hub := m.GetHub(snapshot.SessionID)
	if hub == nil {
		return
	}
	hub.Publish(snapshot)
}

// Online returns the connected players of a session
func (m *HubManager) Online(sessionID model.SessionID) map[model.PlayerID]bool {
	hub := m.GetHub(sessionID)
	if hub == nil {
		return map[model.PlayerID]bool{}
	}
	return hub.Online()
}

// GetHub returns the hub for a session, or nil if it doesn't exist
func (m *HubManager) GetHub(sessionID model.SessionID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[sessionID]
}

// HubCount returns the number of live hubs
func (m *HubManager) HubCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hubs)
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removedCount := 0
	for id, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, id)
			removedCount++
		}
	}
	if removedCount > 0 {
		m.logger.Info("empty hubs cleaned up", slog.Int("removed", removedCount))
	}
}

// Close stops every hub, disconnecting all clients
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}
