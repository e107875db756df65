package realtime

import (
	"sync"
)

// defaultSendBuffer is the number of outbound frames queued per connection
// before new frames are dropped.
const defaultSendBuffer = 64

// Client is one live, authenticated connection.
type Client struct {
	ID     string
	UserID string
	Role   string

	send   chan []byte
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client with an outbound queue of the given size.
func NewClient(id, userID, role string, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Client{
		ID:     id,
		UserID: userID,
		Role:   role,
		send:   make(chan []byte, buffer),
	}
}

// Frames returns the outbound queue. It is closed when the client is closed.
func (c *Client) Frames() <-chan []byte {
	return c.send
}

// enqueue queues a frame without blocking. It reports false when the client
// is closed or its queue is full.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Registry tracks live connections and the user owning each of them.
// It never performs I/O.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client         // connectionID -> client
	users   map[string]map[string]bool // userID -> set of connectionIDs
	offline func(userID string)
	metrics *Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		users:   make(map[string]map[string]bool),
		metrics: metrics,
	}
}

// OnUserOffline sets the function called when a user's last connection is
// unregistered. It runs on the unregistering goroutine, outside the registry lock.
func (r *Registry) OnUserOffline(fn func(userID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline = fn
}

// Register adds a connection. Registering the same connection ID twice is a no-op.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ID]; ok {
		return
	}
	r.clients[c.ID] = c

	conns, ok := r.users[c.UserID]
	if !ok {
		conns = make(map[string]bool)
		r.users[c.UserID] = conns
	}
	conns[c.ID] = true
	r.metrics.connectionOpened(!ok)
}

// Unregister removes a connection and reports whether it was the owner's last one.
// In that case the offline callback is invoked once.
func (r *Registry) Unregister(connectionID string) bool {
	r.mu.Lock()
	c, ok := r.clients[connectionID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.clients, connectionID)

	last := false
	if conns := r.users[c.UserID]; conns != nil {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.users, c.UserID)
			last = true
		}
	}
	offline := r.offline
	r.metrics.connectionClosed(last)
	r.mu.Unlock()

	if last && offline != nil {
		offline(c.UserID)
	}
	return last
}

// Client returns the connection with the given ID, or nil.
func (r *Registry) Client(connectionID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[connectionID]
}

// CountForUser returns the number of live connections owned by the user.
func (r *Registry) CountForUser(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// IsUserConnected reports whether the user has at least one live connection.
func (r *Registry) IsUserConnected(userID string) bool {
	return r.CountForUser(userID) > 0
}

// TotalConnectedUsers returns the number of distinct connected users.
func (r *Registry) TotalConnectedUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// ConnectionCount returns the number of live connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// closeAll closes every registered client and empties the registry.
// No offline callbacks are fired.
func (r *Registry) closeAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.clients)
	for _, c := range r.clients {
		c.close()
		r.metrics.connectionClosed(false)
	}
	r.clients = make(map[string]*Client)
	if r.metrics != nil {
		r.metrics.ConnectedUsers.Set(0)
	}
	r.users = make(map[string]map[string]bool)
	return n
}
