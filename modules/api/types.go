package api

import (
	"time"

	domain "github.com/example/qa-realtime/domain/realtime"
)

// NotificationListResponse is the API response for the caller's notification log.
type NotificationListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// MarkReadResponse is the API response after marking a notification read.
type MarkReadResponse struct {
	ID   string `json:"id"`
	Read bool   `json:"read"`
}

// ActiveRecordingsResponse is the API response for live recordings.
type ActiveRecordingsResponse struct {
	RecordingIDs []string `json:"recording_ids"`
}

// PresenceResponse is the API response for a user's presence.
type PresenceResponse struct {
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	Connected bool       `json:"connected"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
