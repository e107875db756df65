package realtime

import (
	domain "github.com/example/qa-realtime/domain/realtime"
)

// Service names registered by the realtime module.
const (
	ServiceEmitToUser              = "emit-to-user"
	ServiceEmitToProject           = "emit-to-project"
	ServiceEmitToIssue             = "emit-to-issue"
	ServiceBroadcastIssueEvent     = "broadcast-issue-event"
	ServiceBroadcastProjectEvent   = "broadcast-project-event"
	ServiceBroadcastRecordingEvent = "broadcast-recording-event"
	ServiceSendNotification        = "send-notification"
	ServiceGetNotifications        = "get-notifications"
	ServiceMarkNotificationRead    = "mark-notification-read"
	ServiceGetActiveRecordings     = "get-active-recordings"
	ServiceGetPresence             = "get-presence"
)

// EmitRequest targets a user, project or issue room depending on the service.
type EmitRequest struct {
	Target string         `json:"target"`
	Event  string         `json:"event"`
	Data   map[string]any `json:"data,omitempty"`
}

// EmitResponse reports live delivery. Only emit-to-user sets Delivered meaningfully.
type EmitResponse struct {
	Delivered bool `json:"delivered"`
}

// IssueEventRequest is the request for broadcast-issue-event.
type IssueEventRequest struct {
	Event domain.IssueEvent `json:"event"`
}

// ProjectEventRequest is the request for broadcast-project-event.
type ProjectEventRequest struct {
	Event domain.ProjectEvent `json:"event"`
}

// RecordingEventRequest is the request for broadcast-recording-event.
type RecordingEventRequest struct {
	Event domain.RecordingEvent `json:"event"`
}

// AckResponse is returned by services without a result.
type AckResponse struct {
	OK bool `json:"ok"`
}

// SendNotificationRequest is the request for send-notification.
type SendNotificationRequest struct {
	UserID       string              `json:"user_id"`
	Notification domain.Notification `json:"notification"`
}

// NotificationsRequest is the request for get-notifications.
type NotificationsRequest struct {
	UserID string `json:"user_id"`
}

// NotificationsResponse is the response for get-notifications.
type NotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// MarkReadRequest is the request for mark-notification-read.
type MarkReadRequest struct {
	UserID         string `json:"user_id"`
	NotificationID string `json:"notification_id"`
}

// MarkReadResponse reports whether the notification was found.
type MarkReadResponse struct {
	Found bool `json:"found"`
}

// ActiveRecordingsRequest is the request for get-active-recordings.
type ActiveRecordingsRequest struct{}

// ActiveRecordingsResponse is the response for get-active-recordings.
type ActiveRecordingsResponse struct {
	RecordingIDs []string `json:"recording_ids"`
}

// PresenceRequest is the request for get-presence.
type PresenceRequest struct {
	UserID string `json:"user_id"`
}

// PresenceResponse is the response for get-presence. Found is false when no
// live record exists, which readers treat as offline.
type PresenceResponse struct {
	Found     bool                  `json:"found"`
	Presence  domain.PresenceRecord `json:"presence"`
	Connected bool                  `json:"connected"`
}
