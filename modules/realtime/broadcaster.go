package realtime

import (
	"context"

	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/go-monolith/mono/pkg/types"
)

// Outbound events emitted by the Broadcaster.
const (
	EventIssue        = "issue:event"
	EventProject      = "project:event"
	EventRecording    = "recording:event"
	EventNotification = "notification"
)

// Broadcaster is the entry point other backend components use to push
// events to connected clients.
type Broadcaster struct {
	registry      *Registry
	router        *Router
	notifications *NotificationStore
	activity      *ActivityTracker
	logger        types.Logger
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(registry *Registry, router *Router, notifications *NotificationStore, activity *ActivityTracker, logger types.Logger) *Broadcaster {
	return &Broadcaster{
		registry:      registry,
		router:        router,
		notifications: notifications,
		activity:      activity,
		logger:        logger,
	}
}

// EmitToUser sends event to every connection of the user and reports whether
// the user had at least one live connection.
func (b *Broadcaster) EmitToUser(userID, event string, data any) bool {
	if !b.registry.IsUserConnected(userID) {
		return false
	}
	b.router.Broadcast(domain.UserRoom(userID), event, data, "")
	return true
}

// EmitToProject sends event to the project room.
func (b *Broadcaster) EmitToProject(projectID, event string, data any) {
	b.router.Broadcast(domain.ProjectRoom(projectID), event, data, "")
}

// EmitToIssue sends event to the issue room.
func (b *Broadcaster) EmitToIssue(issueID, event string, data any) {
	b.router.Broadcast(domain.IssueRoom(issueID), event, data, "")
}

// BroadcastIssueEvent sends the event to the issue room and always to the
// actor, who may not be watching the issue.
func (b *Broadcaster) BroadcastIssueEvent(event domain.IssueEvent) {
	b.EmitToIssue(event.IssueID, EventIssue, event)
	if event.UserID != "" {
		b.EmitToUser(event.UserID, EventIssue, event)
	}
}

// BroadcastProjectEvent sends the event to the project room.
func (b *Broadcaster) BroadcastProjectEvent(event domain.ProjectEvent) {
	b.EmitToProject(event.ProjectID, EventProject, event)
}

// BroadcastRecordingEvent sends the event to the recording room and, when
// the recording belongs to a project, to the project room.
func (b *Broadcaster) BroadcastRecordingEvent(event domain.RecordingEvent) {
	b.router.Broadcast(domain.RecordingRoom(event.RecordingID), EventRecording, event, "")
	if event.ProjectID != "" {
		b.EmitToProject(event.ProjectID, EventRecording, event)
	}
}

// SendNotification delivers n live and, when persistent, appends it to the
// user's log. The result reports live delivery only.
func (b *Broadcaster) SendNotification(ctx context.Context, userID string, n domain.Notification) bool {
	n = b.notifications.Prepare(n)
	delivered := b.EmitToUser(userID, EventNotification, n)

	if n.Persistent {
		if err := b.notifications.Append(ctx, userID, n); err != nil {
			b.logger.Warn("Notification not persisted", "userID", userID, "notificationID", n.ID, "error", err)
		}
	}
	return delivered
}

// GetUserNotifications returns the user's notification log, oldest first.
func (b *Broadcaster) GetUserNotifications(ctx context.Context, userID string) []domain.Notification {
	return b.notifications.List(ctx, userID)
}

// MarkNotificationRead marks a notification read. Unknown IDs are ignored.
func (b *Broadcaster) MarkNotificationRead(ctx context.Context, userID, notificationID string) bool {
	return b.notifications.MarkRead(ctx, userID, notificationID)
}

// GetActiveRecordings returns the IDs of recordings with recent activity.
func (b *Broadcaster) GetActiveRecordings(ctx context.Context) []string {
	return b.activity.Active(ctx)
}

// Cleanup removes stale activity records.
func (b *Broadcaster) Cleanup(ctx context.Context) int {
	removed := b.activity.Cleanup(ctx)
	if removed > 0 {
		b.logger.Info("Removed stale activity records", "count", removed)
	}
	return removed
}
