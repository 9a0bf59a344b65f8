package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"safety-dashboard/internal/platform/metrics"
)

// drainPollInterval is how often DrainWait re-checks the connection count.
const drainPollInterval = 50 * time.Millisecond

// Sender is the transport side of a registered connection. Send must not
// block; a Send error marks the connection dead and evicts it from the hub.
type Sender interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// connection is the hub's record of one registered client.
type connection struct {
	sender    Sender
	rooms     map[string]struct{}
	createdAt time.Time
}

// Hub manages websocket connections and their room memberships. All state is
// guarded by a single mutex so a connection's room set and each room's member
// set never disagree.
type Hub struct {
	mu      sync.Mutex
	conns   map[string]*connection
	rooms   map[string]map[string]struct{}
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New returns an empty hub. Metrics may be nil to disable metric recording
// (e.g. in tests).
func New(log *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		conns:   make(map[string]*connection),
		rooms:   make(map[string]map[string]struct{}),
		log:     log,
		metrics: m,
	}
}

// Register adds a connection with an empty room set.
func (h *Hub) Register(s Sender) {
	h.mu.Lock()
	h.conns[s.ID()] = &connection{
		sender:    s,
		rooms:     make(map[string]struct{}),
		createdAt: time.Now().UTC(),
	}
	count := len(h.conns)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.IncConnections()
	}
	h.log.Info("client connected", "clientId", s.ID(), "clients", count)
}

// Join adds the connection to the named room, creating the room if it does
// not exist yet. Joining a room the connection is already in is a no-op, as
// is joining on a connection id the hub no longer knows.
func (h *Hub) Join(id, room string) {
	h.mu.Lock()
	conn, ok := h.conns[id]
	if !ok {
		h.mu.Unlock()
		h.log.Debug("join from unknown connection", "clientId", id, "room", room)
		return
	}
	if _, member := conn.rooms[room]; member {
		h.mu.Unlock()
		return
	}
	conn.rooms[room] = struct{}{}
	members, exists := h.rooms[room]
	if !exists {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[id] = struct{}{}
	h.mu.Unlock()

	h.log.Info("client joined room", "clientId", id, "room", room)
}

// LeaveAll removes the connection from every room it belongs to. Rooms left
// with no members are removed.
func (h *Hub) LeaveAll(id string) {
	h.mu.Lock()
	h.leaveAllLocked(id)
	h.mu.Unlock()
}

// leaveAllLocked removes id from all of its rooms. Caller must hold h.mu.
func (h *Hub) leaveAllLocked(id string) {
	conn, ok := h.conns[id]
	if !ok {
		return
	}
	for room := range conn.rooms {
		members := h.rooms[room]
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
			h.log.Info("room removed", "room", room)
		}
	}
	conn.rooms = make(map[string]struct{})
}

// Unregister removes the connection from all rooms and discards it. Safe to
// call for an id that was never registered (e.g. a race with a failed
// upgrade handshake).
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	_, ok := h.conns[id]
	if ok {
		h.leaveAllLocked(id)
		delete(h.conns, id)
	}
	count := len(h.conns)
	h.mu.Unlock()

	if ok {
		h.log.Info("client disconnected", "clientId", id, "clients", count)
	}
}

// Broadcast delivers payload to every current member of the room and returns
// the number of successful deliveries. Delivery to each member is
// independent: a member whose Send fails is evicted from the hub, and the
// failure never propagates to the caller. Broadcasting to a room with no
// members is a no-op.
func (h *Hub) Broadcast(room string, payload []byte) int {
	h.mu.Lock()
	var dead []string
	delivered := 0
	for id := range h.rooms[room] {
		conn := h.conns[id]
		if err := conn.sender.Send(payload); err != nil {
			h.log.Warn("send failed, evicting member",
				"clientId", id, "room", room, "error", err)
			dead = append(dead, id)
			continue
		}
		delivered++
	}
	for _, id := range dead {
		h.leaveAllLocked(id)
		if conn, ok := h.conns[id]; ok {
			_ = conn.sender.Close()
			delete(h.conns, id)
		}
	}
	h.mu.Unlock()

	if h.metrics != nil && delivered > 0 {
		h.metrics.AddBroadcastsDelivered(delivered)
	}
	return delivered
}

// Rooms returns the names of the rooms the connection currently belongs to.
func (h *Hub) Rooms(id string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[id]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(conn.rooms))
	for room := range conn.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Stats returns the number of registered connections and non-empty rooms.
func (h *Hub) Stats() (conns, rooms int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns), len(h.rooms)
}

// DrainWait blocks until every connection has disconnected voluntarily or
// ctx expires, whichever comes first. Run as a drain step during shutdown so
// open websockets get the full grace period before CloseAll tears down
// whatever remains; grace expiry with connections still open is expected and
// is not an error.
func (h *Hub) DrainWait(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		conns, _ := h.Stats()
		if conns == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			h.log.Info("grace period expired with connections open", "remaining", conns)
			return nil
		case <-ticker.C:
		}
	}
}

// CloseAll force-closes every remaining connection and clears all state.
// Called by the shutdown sequence after the voluntary-close grace period.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	closed := len(h.conns)
	for id, conn := range h.conns {
		_ = conn.sender.Close()
		delete(h.conns, id)
	}
	h.rooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	if closed > 0 {
		h.log.Info("force closed remaining connections", "count", closed)
	}
}
