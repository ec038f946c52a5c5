package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	domainuser "propnest/internal/domain/user"
)

// Envelope is the wire shape of every realtime frame, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub is the per-process connection registry: user id to the set of live
// sessions in that user's room. It is constructed once at startup and passed
// by reference to whoever needs to publish; there is no package-level state.
type Hub struct {
	mu       sync.RWMutex
	sessions map[domainuser.ID]map[string]*Session
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[domainuser.ID]map[string]*Session),
		logger:   logger,
	}
}

// Join adds the session to its user's room.
func (h *Hub) Join(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[s.UserID] == nil {
		h.sessions[s.UserID] = make(map[string]*Session)
	}
	h.sessions[s.UserID][s.ID] = s
}

// Leave removes the session from its room. Safe to call for a session that
// was already replaced or removed.
func (h *Hub) Leave(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.sessions[s.UserID]; ok {
		if current, ok := room[s.ID]; ok && current == s {
			delete(room, s.ID)
			if len(room) == 0 {
				delete(h.sessions, s.UserID)
			}
		}
	}
}

// Connections reports how many live sessions a user's room holds.
func (h *Hub) Connections(userID domainuser.ID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Publish delivers an event to every session in the user's room. Best
// effort: no room, or a full session queue, drops the event for that
// connection. Never blocks the caller.
func (h *Hub) Publish(userID domainuser.ID, event string, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("realtime event encode failed", "event", event, "error", err)
		}
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: body})
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions[userID]))
	for _, s := range h.sessions[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.TrySend(payload)
	}
}

// CloseAll tears down every live session; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.sessions {
		for _, s := range room {
			s.Close()
		}
	}
	h.sessions = make(map[domainuser.ID]map[string]*Session)
}
