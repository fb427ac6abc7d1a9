package bus

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"sherpa/internal/logging"
)

// Notification is the payload delivered to overlay clients.
type Notification struct {
	Header    string `json:"header"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
}

// DefaultType is applied when a notification carries no explicit type.
const DefaultType = "popup"

// Conn is one attached overlay client. Send must be safe for concurrent use
// and should return quickly; slow clients are the transport's problem, not
// the registry's.
type Conn interface {
	ID() string
	Send(Notification) error
}

// Registry tracks which connections belong to which rooms and fans
// notifications out to them. A room exists exactly while it has at least one
// member. The zero value is not usable; construct with NewRegistry.
type Registry struct {
	logger *slog.Logger
	clock  func() time.Time

	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	mu    sync.Mutex
	conns map[string]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logging.NewComponentLogger(logger, "bus"),
		clock:  time.Now,
		rooms:  make(map[string]*room),
	}
}

// Join adds conn to the named room, creating the room if needed. Joining a
// room the connection already belongs to is a no-op. The registry lock is
// held across the insert so a concurrent Leave cannot delete the room between
// lookup and membership.
func (r *Registry) Join(roomName string, conn Conn) {
	if roomName == "" || conn == nil {
		return
	}
	r.mu.Lock()
	rm, ok := r.rooms[roomName]
	if !ok {
		rm = &room{conns: make(map[string]Conn)}
		r.rooms[roomName] = rm
	}
	rm.mu.Lock()
	_, already := rm.conns[conn.ID()]
	rm.conns[conn.ID()] = conn
	size := len(rm.conns)
	rm.mu.Unlock()
	r.mu.Unlock()

	if !already {
		r.logger.Info("room joined",
			logging.String("room", roomName),
			logging.String("conn_id", conn.ID()),
			logging.Int("members", size))
	}
}

// Leave removes conn from every room it belongs to. Rooms left empty are
// deleted.
func (r *Registry) Leave(conn Conn) {
	if conn == nil {
		return
	}
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, rm := range r.rooms {
		rm.mu.Lock()
		if _, ok := rm.conns[id]; ok {
			delete(rm.conns, id)
			r.logger.Info("room left",
				logging.String("room", name),
				logging.String("conn_id", id),
				logging.Int("members", len(rm.conns)))
		}
		empty := len(rm.conns) == 0
		rm.mu.Unlock()
		if empty {
			delete(r.rooms, name)
		}
	}
}

// EmitTo delivers the notification to every member of the named room.
// Delivery within a room is serialized, so two EmitTo calls for the same room
// arrive at each member in call order. Emitting to an absent room is a silent
// no-op. The returned count is the number of members the notification was
// handed to.
func (r *Registry) EmitTo(roomName string, n Notification) int {
	r.mu.RLock()
	rm, ok := r.rooms[roomName]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	n = r.withDefaults(roomName, n)

	rm.mu.Lock()
	defer rm.mu.Unlock()
	delivered := 0
	for _, conn := range rm.conns {
		if err := conn.Send(n); err != nil {
			r.logger.Warn("delivery failed",
				logging.String("room", roomName),
				logging.String("conn_id", conn.ID()),
				logging.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// EmitAll delivers the notification once to every connection in every room.
// A connection that belongs to several rooms receives a single copy.
func (r *Registry) EmitAll(n Notification) int {
	n = r.withDefaults("", n)

	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	seen := make(map[string]struct{})
	delivered := 0
	for _, rm := range rooms {
		rm.mu.Lock()
		for id, conn := range rm.conns {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if err := conn.Send(n); err != nil {
				r.logger.Warn("delivery failed",
					logging.String("conn_id", id),
					logging.Error(err))
				continue
			}
			delivered++
		}
		rm.mu.Unlock()
	}
	return delivered
}

// RoomInfo describes one active room for status reporting.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Rooms returns a snapshot of active rooms sorted by name.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for name, rm := range r.rooms {
		rm.mu.Lock()
		out = append(out, RoomInfo{Name: name, Members: len(rm.conns)})
		rm.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RoomSize reports the member count of a room, zero when absent.
func (r *Registry) RoomSize(roomName string) int {
	r.mu.RLock()
	rm, ok := r.rooms[roomName]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.conns)
}

func (r *Registry) withDefaults(roomName string, n Notification) Notification {
	if n.Type == "" {
		n.Type = DefaultType
	}
	if n.Timestamp == "" {
		n.Timestamp = r.clock().UTC().Format(time.RFC3339)
	}
	if n.UserID == "" {
		n.UserID = roomName
	}
	return n
}
