package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RealtimePort is the broadcast API as seen by other modules.
type RealtimePort interface {
	EmitToUser(ctx context.Context, userID, event string, data map[string]any) (bool, error)
	EmitToProject(ctx context.Context, projectID, event string, data map[string]any) error
	EmitToIssue(ctx context.Context, issueID, event string, data map[string]any) error
	BroadcastIssueEvent(ctx context.Context, event domain.IssueEvent) error
	BroadcastProjectEvent(ctx context.Context, event domain.ProjectEvent) error
	BroadcastRecordingEvent(ctx context.Context, event domain.RecordingEvent) error
	SendNotification(ctx context.Context, userID string, n domain.Notification) (bool, error)
	GetUserNotifications(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) (bool, error)
	GetActiveRecordings(ctx context.Context) ([]string, error)
	GetPresence(ctx context.Context, userID string) (PresenceResponse, error)
}

// Adapter implements RealtimePort using the service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new Adapter.
func NewAdapter(container mono.ServiceContainer) RealtimePort {
	if container == nil {
		panic("realtime: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// EmitToUser sends an event to all connections of a user.
func (a *Adapter) EmitToUser(ctx context.Context, userID, event string, data map[string]any) (bool, error) {
	req := EmitRequest{Target: userID, Event: event, Data: data}
	var resp EmitResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceEmitToUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return false, fmt.Errorf("failed to emit to user: %w", err)
	}
	return resp.Delivered, nil
}

// EmitToProject sends an event to a project room.
func (a *Adapter) EmitToProject(ctx context.Context, projectID, event string, data map[string]any) error {
	req := EmitRequest{Target: projectID, Event: event, Data: data}
	var resp EmitResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceEmitToProject,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to emit to project: %w", err)
	}
	return nil
}

// EmitToIssue sends an event to an issue room.
func (a *Adapter) EmitToIssue(ctx context.Context, issueID, event string, data map[string]any) error {
	req := EmitRequest{Target: issueID, Event: event, Data: data}
	var resp EmitResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceEmitToIssue,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to emit to issue: %w", err)
	}
	return nil
}

// BroadcastIssueEvent publishes an issue change.
func (a *Adapter) BroadcastIssueEvent(ctx context.Context, event domain.IssueEvent) error {
	req := IssueEventRequest{Event: event}
	var resp AckResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceBroadcastIssueEvent,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to broadcast issue event: %w", err)
	}
	return nil
}

// BroadcastProjectEvent publishes a project change.
func (a *Adapter) BroadcastProjectEvent(ctx context.Context, event domain.ProjectEvent) error {
	req := ProjectEventRequest{Event: event}
	var resp AckResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceBroadcastProjectEvent,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to broadcast project event: %w", err)
	}
	return nil
}

// BroadcastRecordingEvent publishes a recording state change.
func (a *Adapter) BroadcastRecordingEvent(ctx context.Context, event domain.RecordingEvent) error {
	req := RecordingEventRequest{Event: event}
	var resp AckResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceBroadcastRecordingEvent,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to broadcast recording event: %w", err)
	}
	return nil
}

// SendNotification delivers and optionally persists a notification.
func (a *Adapter) SendNotification(ctx context.Context, userID string, n domain.Notification) (bool, error) {
	req := SendNotificationRequest{UserID: userID, Notification: n}
	var resp EmitResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSendNotification,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return false, fmt.Errorf("failed to send notification: %w", err)
	}
	return resp.Delivered, nil
}

// GetUserNotifications returns the user's notification log.
func (a *Adapter) GetUserNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	req := NotificationsRequest{UserID: userID}
	var resp NotificationsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetNotifications,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	if resp.Notifications == nil {
		resp.Notifications = []domain.Notification{}
	}
	return resp.Notifications, nil
}

// MarkNotificationRead marks a notification read.
func (a *Adapter) MarkNotificationRead(ctx context.Context, userID, notificationID string) (bool, error) {
	req := MarkReadRequest{UserID: userID, NotificationID: notificationID}
	var resp MarkReadResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMarkNotificationRead,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return resp.Found, nil
}

// GetActiveRecordings lists recordings with recent activity.
func (a *Adapter) GetActiveRecordings(ctx context.Context) ([]string, error) {
	req := ActiveRecordingsRequest{}
	var resp ActiveRecordingsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetActiveRecordings,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get active recordings: %w", err)
	}
	if resp.RecordingIDs == nil {
		resp.RecordingIDs = []string{}
	}
	return resp.RecordingIDs, nil
}

// GetPresence returns the stored presence of a user.
func (a *Adapter) GetPresence(ctx context.Context, userID string) (PresenceResponse, error) {
	req := PresenceRequest{UserID: userID}
	var resp PresenceResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetPresence,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return PresenceResponse{}, fmt.Errorf("failed to get presence: %w", err)
	}
	return resp, nil
}
