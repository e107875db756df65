package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dirdomain "github.com/example/qa-realtime/domain/directory"
	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/example/qa-realtime/events"
	"github.com/example/qa-realtime/modules/directory"
	"github.com/example/qa-realtime/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/robfig/cron/v3"
)

// Config holds the realtime module settings.
type Config struct {
	JWTSecret         string
	JWTIssuer         string
	HandshakeTimeout  time.Duration
	PresenceTTL       time.Duration
	ActivityTTL       time.Duration
	NotificationTTL   time.Duration
	NotificationLimit int
	CleanupSchedule   string
	ClientRateLimit   float64
	ClientRateBurst   int
}

var errDirectoryUnavailable = errors.New("user directory not configured")

// Module hosts the connection registry, room router and broadcast facade.
type Module struct {
	cfg      Config
	store    store.Store
	eventBus mono.EventBus
	logger   types.Logger

	directory     directoryRef
	metrics       *Metrics
	registry      *Registry
	router        *Router
	presence      *PresenceTracker
	notifications *NotificationStore
	activity      *ActivityTracker
	broadcaster   *Broadcaster
	gateway       *Gateway

	cron *cron.Cron
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the realtime module on top of the given store.
func NewModule(cfg Config, s store.Store, logger types.Logger) (*Module, error) {
	m := &Module{
		cfg:     cfg,
		store:   s,
		logger:  logger,
		metrics: NewMetrics(),
	}

	m.registry = NewRegistry(m.metrics)
	m.router = NewRouter(m.registry, logger, m.metrics)
	m.presence = NewPresenceTracker(s, m.router, &m.directory, cfg.PresenceTTL, logger, m.metrics)
	m.presence.OnChange(m.publishPresence)
	m.activity = NewActivityTracker(s, cfg.ActivityTTL, logger, m.metrics)

	notifications, err := NewNotificationStore(s, cfg.NotificationTTL, cfg.NotificationLimit, logger, m.metrics)
	if err != nil {
		return nil, err
	}
	m.notifications = notifications
	m.broadcaster = NewBroadcaster(m.registry, m.router, m.notifications, m.activity, logger)

	verifier := NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	m.gateway = NewGateway(GatewayConfig{
		HandshakeTimeout: cfg.HandshakeTimeout,
		RateLimit:        cfg.ClientRateLimit,
		RateBurst:        cfg.ClientRateBurst,
	}, NewAuthenticator(verifier, &m.directory), m.registry, m.router, m.presence, m.activity, &m.directory, logger, m.metrics)

	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "realtime"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"directory"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "directory":
		m.directory.set(directory.NewAdapter(container))
	}
}

// SetDirectory replaces the user directory. Used when the module runs without
// the directory module.
func (m *Module) SetDirectory(dir UserDirectory) {
	m.directory.set(dir)
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.PresenceChangedV1.ToBase(),
	}
}

// Start schedules the periodic activity cleanup.
func (m *Module) Start(_ context.Context) error {
	if m.directory.get() == nil {
		return fmt.Errorf("directory dependency not set")
	}

	schedule := m.cfg.CleanupSchedule
	if schedule == "" {
		schedule = "@every 1m"
	}
	m.cron = cron.New()
	if _, err := m.cron.AddFunc(schedule, m.runCleanup); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	m.cron.Start()

	m.logger.Info("Realtime module started", "cleanupSchedule", schedule)
	return nil
}

// Stop closes all connections and stops the cleanup schedule.
func (m *Module) Stop(ctx context.Context) error {
	if m.cron != nil {
		select {
		case <-m.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	closed := m.gateway.CloseAll()
	m.logger.Info("Realtime module stopped", "closedConnections", closed)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":     m.registry.ConnectionCount(),
			"connected_users": m.registry.TotalConnectedUsers(),
			"rooms":           m.router.RoomCount(),
		},
	}
}

// Gateway returns the connection gateway for the HTTP layer.
func (m *Module) Gateway() *Gateway {
	return m.gateway
}

// Broadcaster returns the broadcast facade.
func (m *Module) Broadcaster() *Broadcaster {
	return m.broadcaster
}

// Metrics returns the module collectors.
func (m *Module) Metrics() *Metrics {
	return m.metrics
}

func (m *Module) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	m.broadcaster.Cleanup(ctx)
}

func (m *Module) publishPresence(_ context.Context, record domain.PresenceRecord) {
	if m.eventBus == nil {
		return
	}
	event := events.PresenceChangedEvent{
		UserID:   record.UserID,
		Status:   record.Status,
		LastSeen: record.LastSeen,
	}
	if err := events.PresenceChangedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish PresenceChanged event", "userID", record.UserID, "error", err)
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceEmitToUser, json.Unmarshal, json.Marshal, m.handleEmitToUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceEmitToUser, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceEmitToProject, json.Unmarshal, json.Marshal, m.handleEmitToProject,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceEmitToProject, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceEmitToIssue, json.Unmarshal, json.Marshal, m.handleEmitToIssue,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceEmitToIssue, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceBroadcastIssueEvent, json.Unmarshal, json.Marshal, m.handleBroadcastIssueEvent,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceBroadcastIssueEvent, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceBroadcastProjectEvent, json.Unmarshal, json.Marshal, m.handleBroadcastProjectEvent,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceBroadcastProjectEvent, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceBroadcastRecordingEvent, json.Unmarshal, json.Marshal, m.handleBroadcastRecordingEvent,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceBroadcastRecordingEvent, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSendNotification, json.Unmarshal, json.Marshal, m.handleSendNotification,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSendNotification, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetNotifications, json.Unmarshal, json.Marshal, m.handleGetNotifications,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetNotifications, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMarkNotificationRead, json.Unmarshal, json.Marshal, m.handleMarkNotificationRead,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceMarkNotificationRead, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetActiveRecordings, json.Unmarshal, json.Marshal, m.handleGetActiveRecordings,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetActiveRecordings, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetPresence, json.Unmarshal, json.Marshal, m.handleGetPresence,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetPresence, err)
	}

	m.logger.Info("Registered realtime services", "count", 11)
	return nil
}

func (m *Module) handleEmitToUser(_ context.Context, req EmitRequest, _ *mono.Msg) (EmitResponse, error) {
	if req.Target == "" || req.Event == "" {
		return EmitResponse{}, fmt.Errorf("target and event are required")
	}
	return EmitResponse{Delivered: m.broadcaster.EmitToUser(req.Target, req.Event, req.Data)}, nil
}

func (m *Module) handleEmitToProject(_ context.Context, req EmitRequest, _ *mono.Msg) (EmitResponse, error) {
	if req.Target == "" || req.Event == "" {
		return EmitResponse{}, fmt.Errorf("target and event are required")
	}
	m.broadcaster.EmitToProject(req.Target, req.Event, req.Data)
	return EmitResponse{}, nil
}

func (m *Module) handleEmitToIssue(_ context.Context, req EmitRequest, _ *mono.Msg) (EmitResponse, error) {
	if req.Target == "" || req.Event == "" {
		return EmitResponse{}, fmt.Errorf("target and event are required")
	}
	m.broadcaster.EmitToIssue(req.Target, req.Event, req.Data)
	return EmitResponse{}, nil
}

func (m *Module) handleBroadcastIssueEvent(_ context.Context, req IssueEventRequest, _ *mono.Msg) (AckResponse, error) {
	if req.Event.IssueID == "" {
		return AckResponse{}, fmt.Errorf("issueId is required")
	}
	m.broadcaster.BroadcastIssueEvent(req.Event)
	return AckResponse{OK: true}, nil
}

func (m *Module) handleBroadcastProjectEvent(_ context.Context, req ProjectEventRequest, _ *mono.Msg) (AckResponse, error) {
	if req.Event.ProjectID == "" {
		return AckResponse{}, fmt.Errorf("projectId is required")
	}
	m.broadcaster.BroadcastProjectEvent(req.Event)
	return AckResponse{OK: true}, nil
}

func (m *Module) handleBroadcastRecordingEvent(_ context.Context, req RecordingEventRequest, _ *mono.Msg) (AckResponse, error) {
	if req.Event.RecordingID == "" {
		return AckResponse{}, fmt.Errorf("recordingId is required")
	}
	m.broadcaster.BroadcastRecordingEvent(req.Event)
	return AckResponse{OK: true}, nil
}

func (m *Module) handleSendNotification(ctx context.Context, req SendNotificationRequest, _ *mono.Msg) (EmitResponse, error) {
	if req.UserID == "" {
		return EmitResponse{}, fmt.Errorf("user_id is required")
	}
	return EmitResponse{Delivered: m.broadcaster.SendNotification(ctx, req.UserID, req.Notification)}, nil
}

func (m *Module) handleGetNotifications(ctx context.Context, req NotificationsRequest, _ *mono.Msg) (NotificationsResponse, error) {
	return NotificationsResponse{Notifications: m.broadcaster.GetUserNotifications(ctx, req.UserID)}, nil
}

func (m *Module) handleMarkNotificationRead(ctx context.Context, req MarkReadRequest, _ *mono.Msg) (MarkReadResponse, error) {
	return MarkReadResponse{Found: m.broadcaster.MarkNotificationRead(ctx, req.UserID, req.NotificationID)}, nil
}

func (m *Module) handleGetActiveRecordings(ctx context.Context, _ ActiveRecordingsRequest, _ *mono.Msg) (ActiveRecordingsResponse, error) {
	return ActiveRecordingsResponse{RecordingIDs: m.broadcaster.GetActiveRecordings(ctx)}, nil
}

func (m *Module) handleGetPresence(ctx context.Context, req PresenceRequest, _ *mono.Msg) (PresenceResponse, error) {
	record, found := m.presence.Get(ctx, req.UserID)
	return PresenceResponse{
		Found:     found,
		Presence:  record,
		Connected: m.registry.IsUserConnected(req.UserID),
	}, nil
}

// directoryRef forwards to a UserDirectory that is wired after construction.
type directoryRef struct {
	dir UserDirectory
}

func (d *directoryRef) set(dir UserDirectory) { d.dir = dir }
func (d *directoryRef) get() UserDirectory    { return d.dir }

func (d *directoryRef) LookupUser(ctx context.Context, userID string) (*dirdomain.Profile, error) {
	if d.dir == nil {
		return nil, errDirectoryUnavailable
	}
	return d.dir.LookupUser(ctx, userID)
}

func (d *directoryRef) ProjectsForUser(ctx context.Context, userID string) ([]string, error) {
	if d.dir == nil {
		return nil, errDirectoryUnavailable
	}
	return d.dir.ProjectsForUser(ctx, userID)
}
