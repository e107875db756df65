package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	dirdomain "github.com/example/qa-realtime/domain/directory"
	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/example/qa-realtime/modules/store"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeDirectory implements UserDirectory for testing
type fakeDirectory struct {
	mu         sync.Mutex
	users      map[string]*dirdomain.Profile
	projects   map[string][]string
	projectErr error
	lookups    int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:    make(map[string]*dirdomain.Profile),
		projects: make(map[string][]string),
	}
}

func (d *fakeDirectory) addUser(id string, active bool, projects ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = &dirdomain.Profile{ID: id, Role: "member", Active: active}
	d.projects[id] = projects
}

func (d *fakeDirectory) LookupUser(_ context.Context, userID string) (*dirdomain.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	p, ok := d.users[userID]
	if !ok {
		return nil, dirdomain.ErrUserNotFound
	}
	return p, nil
}

func (d *fakeDirectory) ProjectsForUser(_ context.Context, userID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.projectErr != nil {
		return nil, d.projectErr
	}
	return append([]string(nil), d.projects[userID]...), nil
}

var errStoreDown = errors.New("store unavailable")

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error)              { return nil, errStoreDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error { return errStoreDown }
func (failingStore) Delete(context.Context, string) error                     { return errStoreDown }
func (failingStore) Keys(context.Context, string) ([]string, error)           { return nil, errStoreDown }

var _ store.Store = failingStore{}

var errConnClosed = errors.New("connection closed")

// fakeConn implements Conn with in-memory frames.
type fakeConn struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.out <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// send queues a client frame.
func (c *fakeConn) send(t *testing.T, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	frame, _ := json.Marshal(domain.Envelope{Event: event, Data: raw})
	c.in <- frame
}

type frame struct {
	Event string
	Data  map[string]any
}

func decodeFrame(t *testing.T, raw []byte) frame {
	t.Helper()
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("invalid frame %s: %v", raw, err)
	}
	f := frame{Event: env.Event}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &f.Data); err != nil {
			t.Fatalf("invalid frame data %s: %v", env.Data, err)
		}
	}
	return f
}

// expect reads frames until one with the given event arrives.
func (c *fakeConn) expect(t *testing.T, event string) frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.out:
			if f := decodeFrame(t, raw); f.Event == event {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", event)
			return frame{}
		}
	}
}

// collect returns every frame received within wait.
func (c *fakeConn) collect(t *testing.T, wait time.Duration) []frame {
	t.Helper()
	var frames []frame
	deadline := time.After(wait)
	for {
		select {
		case raw := <-c.out:
			frames = append(frames, decodeFrame(t, raw))
		case <-deadline:
			return frames
		}
	}
}

// sync sends a ping and waits for the pong, so every earlier frame has been handled.
func (c *fakeConn) sync(t *testing.T) {
	t.Helper()
	c.send(t, EventCustom, map[string]any{"type": "ping"})
	c.expect(t, EventPong)
}

func countEvents(frames []frame, event string) int {
	n := 0
	for _, f := range frames {
		if f.Event == event {
			n++
		}
	}
	return n
}

// drainClient returns the frames queued for a client without blocking.
func drainClient(t *testing.T, c *Client) []frame {
	t.Helper()
	var frames []frame
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return frames
			}
			frames = append(frames, decodeFrame(t, raw))
		default:
			return frames
		}
	}
}

type testRig struct {
	store       store.Store
	directory   *fakeDirectory
	metrics     *Metrics
	registry    *Registry
	router      *Router
	presence    *PresenceTracker
	notes       *NotificationStore
	activity    *ActivityTracker
	broadcaster *Broadcaster
	gateway     *Gateway
}

func newTestRig(t *testing.T, s store.Store) *testRig {
	t.Helper()
	logger := &mockLogger{}
	r := &testRig{store: s, directory: newFakeDirectory(), metrics: NewMetrics()}

	r.registry = NewRegistry(r.metrics)
	r.router = NewRouter(r.registry, logger, r.metrics)
	r.presence = NewPresenceTracker(s, r.router, r.directory, 5*time.Minute, logger, r.metrics)
	r.activity = NewActivityTracker(s, 5*time.Minute, logger, r.metrics)

	notes, err := NewNotificationStore(s, 7*24*time.Hour, 50, logger, r.metrics)
	if err != nil {
		t.Fatalf("NewNotificationStore() error = %v", err)
	}
	r.notes = notes
	r.broadcaster = NewBroadcaster(r.registry, r.router, r.notes, r.activity, logger)
	r.gateway = NewGateway(GatewayConfig{HandshakeTimeout: time.Second}, NewAuthenticator(NewJWTVerifier("test-secret", ""), r.directory),
		r.registry, r.router, r.presence, r.activity, r.directory, logger, r.metrics)
	return r
}

// connect serves a fake connection for userID and waits for the welcome frame.
func (r *testRig) connect(t *testing.T, userID string) (*fakeConn, <-chan struct{}) {
	t.Helper()
	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.gateway.Serve(context.Background(), conn, Identity{UserID: userID, Role: "member"})
	}()
	conn.expect(t, EventConnected)
	return conn, done
}

// addClient registers a bare client without a transport.
func (r *testRig) addClient(id, userID string) *Client {
	c := NewClient(id, userID, "member", 16)
	r.registry.Register(c)
	return c
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not shut down")
	}
}
