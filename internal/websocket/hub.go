package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/safealert/internal/geo"
	"github.com/dukerupert/safealert/internal/model"
)

const (
	TypeTrackerUpdated = "tracker_updated"
	TypeActivityAdded  = "activity_added"
)

// mapZoom is the embed zoom level used for tracker updates.
const mapZoom = 15

// Message is a live update pushed to dashboard clients.
type Message struct {
	Type     string               `json:"type"`
	Tracker  *model.Tracker       `json:"tracker,omitempty"`
	Activity *model.ActivityEntry `json:"activity,omitempty"`
	MapURL   string               `json:"mapUrl,omitempty"`
	MapsLink string               `json:"mapsLink,omitempty"`
}

// TrackerMessage describes the tracker snapshot, with map URLs when it has a
// last location.
func TrackerMessage(t model.Tracker) Message {
	msg := Message{Type: TypeTrackerUpdated, Tracker: &t}
	if loc := t.LastLocation; loc != nil {
		msg.MapURL = geo.EmbedURL(loc.Latitude, loc.Longitude, mapZoom)
		msg.MapsLink = geo.MapsLink(loc.Latitude, loc.Longitude)
	}
	return msg
}

func ActivityMessage(e model.ActivityEntry) Message {
	return Message{Type: TypeActivityAdded, Activity: &e}
}

// Hub fans updates out to every connected dashboard.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("dashboard client connected", "clients", h.ClientCount())
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast queues msg for every client. Clients with a full buffer miss it.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dashboard client lagging, dropping update", "type", msg.Type)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
