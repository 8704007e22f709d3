package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldwork/taskd/internal/models"
)

// Room names. Every connection joins its user room, its role room and the
// global room at handshake; publishes target rooms, never single connections.
const RoomGlobal = "global"

// UserRoom names the room unique to one user identity.
func UserRoom(userID string) string {
	return "user:" + userID
}

// RoleRoom names the room shared by every connection of one role.
func RoleRoom(role models.Role) string {
	return "role:" + role.String()
}

// envelope is the wire format of every published event.
type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	TS    time.Time   `json:"ts"`
}

// Hub owns the room membership table and the presence registry. Connect and
// disconnect are the only paths that mutate either.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	presence *Presence
	logger   *slog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		presence: NewPresence(),
		logger:   logger,
	}
}

// Presence exposes the registry for dispatch-time presence checks.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Attach registers an authenticated connection: presence entry plus the
// user, role and global rooms. The caller starts the client's pumps.
func (h *Hub) Attach(c *Client) {
	h.presence.Register(c.UserID, c)
	h.join(c, UserRoom(c.UserID))
	h.join(c, RoleRoom(c.Role))
	h.join(c, RoomGlobal)
	h.logger.Info("client connected",
		slog.String("user", c.UserID), slog.String("role", c.Role.String()))
}

// Detach removes a connection from presence and every room. Idempotent;
// called on read failure, write failure and clean close alike.
func (h *Hub) Detach(c *Client) {
	h.presence.Unregister(c.UserID, c)

	h.mu.Lock()
	for room, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	c.close()
	h.logger.Info("client disconnected", slog.String("user", c.UserID))
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Publish fans an event out to every member of a room. Delivery is
// best-effort: a member whose send buffer is full is detached rather than
// blocked on, and an empty room is not an error.
func (h *Hub) Publish(room, event string, payload interface{}) error {
	raw, err := json.Marshal(envelope{Event: event, Data: payload, TS: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		sent, open := c.trySend(raw)
		if !open {
			// Detached by a concurrent disconnect between snapshot and
			// send; delivery to this member is simply missed.
			continue
		}
		if !sent {
			h.logger.Warn("dropping slow client", slog.String("user", c.UserID))
			h.Detach(c)
		}
	}
	return nil
}
