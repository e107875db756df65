package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	dirdomain "github.com/example/qa-realtime/domain/directory"
	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/go-monolith/mono/pkg/types"
)

// ProjectLister returns the projects a user is a member of.
type ProjectLister interface {
	ProjectsForUser(ctx context.Context, userID string) ([]string, error)
}

// UserDirectory is the user lookup used by the handshake and auto-join.
type UserDirectory interface {
	ProjectLister
	LookupUser(ctx context.Context, userID string) (*dirdomain.Profile, error)
}

// Router maintains room membership and fans frames out to room members.
// Lock order: Router.mu before Registry.mu.
type Router struct {
	registry *Registry
	logger   types.Logger
	metrics  *Metrics
	now      func() time.Time

	mu     sync.RWMutex
	rooms  map[domain.RoomID]map[string]*Client // room -> members by connectionID
	joined map[string]map[domain.RoomID]bool    // connectionID -> rooms
}

// NewRouter creates a Router over the given registry.
func NewRouter(registry *Registry, logger types.Logger, metrics *Metrics) *Router {
	return &Router{
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		rooms:    make(map[domain.RoomID]map[string]*Client),
		joined:   make(map[string]map[domain.RoomID]bool),
	}
}

// Join adds the connection to room. Joining twice is a no-op, and so is
// joining with a connection the registry does not know.
func (r *Router) Join(connectionID string, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.registry.Client(connectionID)
	if c == nil {
		return
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	members[connectionID] = c

	rooms, ok := r.joined[connectionID]
	if !ok {
		rooms = make(map[domain.RoomID]bool)
		r.joined[connectionID] = rooms
	}
	rooms[room] = true
}

// Leave removes the connection from room. Leaving a room that was never
// joined is a no-op. Empty rooms are dropped.
func (r *Router) Leave(connectionID string, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connectionID, room)
}

// LeaveAll removes the connection from every room it joined.
func (r *Router) LeaveAll(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[connectionID] {
		r.leaveLocked(connectionID, room)
	}
	delete(r.joined, connectionID)
}

func (r *Router) leaveLocked(connectionID string, room domain.RoomID) {
	if members, ok := r.rooms[room]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms, ok := r.joined[connectionID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, connectionID)
		}
	}
}

// Rooms returns the rooms the connection has joined, sorted.
func (r *Router) Rooms(connectionID string) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]domain.RoomID, 0, len(r.joined[connectionID]))
	for room := range r.joined[connectionID] {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

// IsMember reports whether the connection has joined room.
func (r *Router) IsMember(connectionID string, room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][connectionID]
	return ok
}

// MemberCount returns the number of connections in room.
func (r *Router) MemberCount(room domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// RoomCount returns the number of non-empty rooms.
func (r *Router) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Broadcast delivers event to every member of room except the connection
// excludeID (empty for none) and returns the number of connections the frame
// was queued for. Delivery is best-effort.
func (r *Router) Broadcast(room domain.RoomID, event string, payload any, excludeID string) int {
	frame, err := r.encode(event, payload)
	if err != nil {
		r.logger.Error("Failed to encode broadcast", "room", string(room), "event", event, "error", err)
		return 0
	}

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.rooms[room]))
	for id, c := range r.rooms[room] {
		if id == excludeID {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	r.metrics.broadcast(event)
	return r.deliver(targets, frame)
}

// Send delivers event to a single connection.
func (r *Router) Send(connectionID, event string, payload any) bool {
	c := r.registry.Client(connectionID)
	if c == nil {
		return false
	}

	frame, err := r.encode(event, payload)
	if err != nil {
		r.logger.Error("Failed to encode frame", "connectionID", connectionID, "event", event, "error", err)
		return false
	}
	return r.deliver([]*Client{c}, frame) == 1
}

// AutoJoin joins the connection to its user room and to one room per project
// membership. A failed directory lookup is logged and only the user room is joined.
func (r *Router) AutoJoin(ctx context.Context, c *Client, projects ProjectLister) []domain.RoomID {
	r.Join(c.ID, domain.UserRoom(c.UserID))

	if projects != nil {
		projectIDs, err := projects.ProjectsForUser(ctx, c.UserID)
		if err != nil {
			r.logger.Warn("Project lookup failed, skipping project rooms", "userID", c.UserID, "error", err)
		}
		for _, projectID := range projectIDs {
			r.Join(c.ID, domain.ProjectRoom(projectID))
		}
	}
	return r.Rooms(c.ID)
}

func (r *Router) deliver(targets []*Client, frame []byte) int {
	delivered := 0
	for _, c := range targets {
		if c.enqueue(frame) {
			delivered++
			continue
		}
		r.metrics.dropped()
		r.logger.Debug("Frame dropped", "connectionID", c.ID)
	}
	return delivered
}

func (r *Router) encode(event string, payload any) ([]byte, error) {
	data, err := stampTimestamp(payload, r.now().UTC())
	if err != nil {
		return nil, err
	}
	return json.Marshal(domain.Envelope{Event: event, Data: data})
}

// stampTimestamp encodes payload with a "timestamp" field set to ts.
// Object payloads get the field added (replacing any existing one); other
// values are wrapped as {"value": ..., "timestamp": ...}.
func stampTimestamp(payload any, ts time.Time) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	stamp, err := json.Marshal(ts)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	switch {
	case string(raw) == "null":
	case len(raw) > 0 && raw[0] == '{':
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal payload object: %w", err)
		}
	default:
		fields["value"] = raw
	}
	fields["timestamp"] = stamp
	return json.Marshal(fields)
}
