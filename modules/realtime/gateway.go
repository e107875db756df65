package realtime

import (
	"context"
	"errors"
	"time"

	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Conn is the message-framed transport of one client. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// GatewayConfig holds per-connection limits.
type GatewayConfig struct {
	HandshakeTimeout time.Duration
	RateLimit        float64 // inbound messages per second, <= 0 disables limiting
	RateBurst        int
	SendBuffer       int
}

// Gateway authenticates connections and runs their message loops.
type Gateway struct {
	cfg      GatewayConfig
	auth     *Authenticator
	registry *Registry
	router   *Router
	presence *PresenceTracker
	activity *ActivityTracker
	projects ProjectLister
	logger   types.Logger
	metrics  *Metrics
}

// NewGateway creates a Gateway. It takes over the registry's offline callback
// to publish the offline presence of users whose last connection closed.
func NewGateway(cfg GatewayConfig, auth *Authenticator, registry *Registry, router *Router, presence *PresenceTracker, activity *ActivityTracker, projects ProjectLister, logger types.Logger, metrics *Metrics) *Gateway {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	g := &Gateway{
		cfg:      cfg,
		auth:     auth,
		registry: registry,
		router:   router,
		presence: presence,
		activity: activity,
		projects: projects,
		logger:   logger,
		metrics:  metrics,
	}
	registry.OnUserOffline(func(userID string) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HandshakeTimeout)
		defer cancel()
		g.presence.Update(ctx, userID, domain.StatusOffline)
	})
	return g
}

// Authenticate resolves a handshake credential within the handshake timeout.
// The returned error is one of ErrTokenRequired, ErrInvalidUser or ErrAuthFailed.
func (g *Gateway) Authenticate(ctx context.Context, token string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.HandshakeTimeout)
	defer cancel()

	ident, err := g.auth.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.logger.Warn("Handshake timed out")
			return Identity{}, ErrAuthFailed
		}
		return Identity{}, err
	}
	return ident, nil
}

// Serve runs an authenticated connection until the client disconnects or the
// connection is closed by the server. It blocks.
func (g *Gateway) Serve(ctx context.Context, conn Conn, ident Identity) {
	client := NewClient(uuid.New().String(), ident.UserID, ident.Role, g.cfg.SendBuffer)
	g.registry.Register(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.writePump(conn, client)
	}()

	rooms := g.router.AutoJoin(ctx, client, g.projects)
	g.logger.Info("Client connected", "connectionID", client.ID, "userID", ident.UserID, "rooms", len(rooms))

	g.router.Send(client.ID, EventConnected, map[string]any{
		"message": "Connected to real-time server",
		"userId":  ident.UserID,
	})
	g.presence.Update(ctx, ident.UserID, domain.StatusOnline)

	g.readLoop(ctx, conn, client)

	g.router.LeaveAll(client.ID)
	g.registry.Unregister(client.ID)
	client.close()
	<-done

	g.logger.Info("Client disconnected", "connectionID", client.ID, "userID", ident.UserID)
}

// CloseAll closes every live connection. Offline presence is not published.
func (g *Gateway) CloseAll() int {
	return g.registry.closeAll()
}

func (g *Gateway) writePump(conn Conn, client *Client) {
	defer conn.Close()

	for frame := range client.Frames() {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			g.logger.Debug("Write failed, closing connection", "connectionID", client.ID, "error", err)
			return
		}
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn Conn, client *Client) {
	limit := rate.Inf
	if g.cfg.RateLimit > 0 {
		limit = rate.Limit(g.cfg.RateLimit)
	}
	burst := g.cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Warn("Connection read error", "connectionID", client.ID, "error", err)
			}
			return
		}

		if !limiter.Allow() {
			g.metrics.inbound("rate_limited")
			g.logger.Warn("Client message dropped, rate limit exceeded", "connectionID", client.ID, "userID", client.UserID)
			continue
		}

		msg, err := DecodeClientMessage(data)
		if err != nil {
			g.metrics.inbound("invalid")
			g.logger.Warn("Client message skipped", "connectionID", client.ID, "error", err)
			continue
		}

		g.metrics.inbound(msg.Event())
		g.dispatch(ctx, client, msg)
	}
}

// dispatch applies one client message. This is the complete inbound protocol.
func (g *Gateway) dispatch(ctx context.Context, client *Client, msg ClientMessage) {
	switch m := msg.(type) {
	case IssueSubscribe:
		g.router.Join(client.ID, domain.IssueRoom(m.IssueID))
	case IssueUnsubscribe:
		g.router.Leave(client.ID, domain.IssueRoom(m.IssueID))
	case ProjectSubscribe:
		g.router.Join(client.ID, domain.ProjectRoom(m.ProjectID))
	case ProjectUnsubscribe:
		g.router.Leave(client.ID, domain.ProjectRoom(m.ProjectID))

	case RecordingStart:
		g.router.Join(client.ID, domain.RecordingRoom(m.RecordingID))
		zero := 0
		g.activity.Touch(ctx, m.RecordingID, client.UserID, &zero)
		if m.ProjectID != "" {
			g.router.Broadcast(domain.ProjectRoom(m.ProjectID), EventRecordingStarted, map[string]any{
				"recordingId": m.RecordingID,
				"projectId":   m.ProjectID,
				"userId":      client.UserID,
			}, client.ID)
		}

	case RecordingInteraction:
		g.router.Broadcast(domain.RecordingRoom(m.RecordingID), EventRecordingInteraction,
			withUser(m.Fields, client.UserID), client.ID)
		g.activity.Touch(ctx, m.RecordingID, client.UserID, m.InteractionCount)

	case RecordingScreenshot:
		g.router.Broadcast(domain.RecordingRoom(m.RecordingID), EventRecordingScreenshot,
			withUser(m.Fields, client.UserID), client.ID)

	case RecordingStop:
		room := domain.RecordingRoom(m.RecordingID)
		g.router.Leave(client.ID, room)
		stopped := map[string]any{
			"recordingId": m.RecordingID,
			"userId":      client.UserID,
		}
		if m.Duration != nil {
			stopped["duration"] = *m.Duration
		}
		g.router.Broadcast(room, EventRecordingStopped, stopped, client.ID)
		if m.ProjectID != "" {
			stopped["projectId"] = m.ProjectID
			g.router.Broadcast(domain.ProjectRoom(m.ProjectID), EventRecordingStopped, stopped, client.ID)
		}
		g.activity.Stop(ctx, m.RecordingID)

	case TypingStart:
		g.router.Broadcast(domain.IssueRoom(m.IssueID), EventUserTyping, map[string]any{
			"userId":  client.UserID,
			"issueId": m.IssueID,
		}, client.ID)
	case TypingStop:
		g.router.Broadcast(domain.IssueRoom(m.IssueID), EventUserStoppedTyping, map[string]any{
			"userId":  client.UserID,
			"issueId": m.IssueID,
		}, client.ID)

	case PresenceUpdate:
		g.presence.Update(ctx, client.UserID, m.Status)

	case CustomEvent:
		switch m.Type {
		case "ping":
			g.router.Send(client.ID, EventPong, nil)
		case "echo":
			g.router.Send(client.ID, EventEcho, m.Fields)
		default:
			g.logger.Warn("Unknown custom event type", "connectionID", client.ID, "type", m.Type)
		}

	default:
		g.logger.Warn("Unhandled client message", "event", msg.Event())
	}
}

// withUser returns a copy of fields with the sender's userId set.
func withUser(fields map[string]any, userID string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["userId"] = userID
	return out
}
