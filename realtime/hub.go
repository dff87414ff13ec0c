// Package realtime pushes change notifications to websocket subscribers.
//
// Clients subscribe to one team room each. Events carry entity ids only —
// attendance data is filtered per viewer on the REST read paths, so it must
// never be broadcast wholesale here.
package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

const (
	EventTeamUpdated    = "TEAM_UPDATED"
	EventSessionUpdated = "SESSION_UPDATED"
	EventSessionDeleted = "SESSION_DELETED"
)

type Event struct {
	Type      string `json:"type"`
	TeamID    int    `json:"team_id"`
	SessionID int    `json:"session_id,omitempty"`
}

func teamRoom(teamID int) string {
	return fmt.Sprintf("team_%d", teamID)
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	events     chan Event

	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan Event, 64),
		rooms:      make(map[string]map[*Client]struct{}),
		logger:     logger,
	}
}

// Run owns the room table. It exits when both channels are drained and the
// process is shutting down; in practice it runs for the process lifetime.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]struct{})
			}
			h.rooms[client.room][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("realtime client subscribed", slog.String("room", client.room))

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, subscribed := clients[client]; subscribed {
					delete(clients, client)
					client.closeSend()
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("realtime client unsubscribed", slog.String("room", client.room))

		case event := <-h.events:
			h.broadcast(event)
		}
	}
}

func (h *Hub) broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal realtime event", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[teamRoom(event.TeamID)] {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; drop the event rather than block the hub. The
			// client still converges on its next REST fetch.
		}
	}
}

// Notifier implementation used by the services layer.

func (h *Hub) TeamUpdated(teamID int) {
	h.publish(Event{Type: EventTeamUpdated, TeamID: teamID})
}

func (h *Hub) SessionUpdated(teamID, sessionID int) {
	h.publish(Event{Type: EventSessionUpdated, TeamID: teamID, SessionID: sessionID})
}

func (h *Hub) SessionDeleted(teamID, sessionID int) {
	h.publish(Event{Type: EventSessionDeleted, TeamID: teamID, SessionID: sessionID})
}

func (h *Hub) publish(event Event) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn("realtime event queue full, dropping event", slog.String("type", event.Type))
	}
}
