package realtime

import (
	"encoding/json"
	"time"
)

// RoomID is a namespaced broadcast channel key.
type RoomID string

// Room namespaces.
const (
	RoomPrefixUser      = "user:"
	RoomPrefixProject   = "project:"
	RoomPrefixIssue     = "issue:"
	RoomPrefixRecording = "recording:"
)

// UserRoom returns the personal room of a user.
func UserRoom(userID string) RoomID { return RoomID(RoomPrefixUser + userID) }

// ProjectRoom returns the room shared by all members of a project.
func ProjectRoom(projectID string) RoomID { return RoomID(RoomPrefixProject + projectID) }

// IssueRoom returns the room of clients watching an issue.
func IssueRoom(issueID string) RoomID { return RoomID(RoomPrefixIssue + issueID) }

// RecordingRoom returns the room of a live recording session.
func RecordingRoom(recordingID string) RoomID { return RoomID(RoomPrefixRecording + recordingID) }

// Presence statuses the server sets on its own. Clients may publish any other string.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresenceRecord is the advisory online state of a user.
type PresenceRecord struct {
	UserID   string    `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// ActivityRecord marks a resource (a live recording) as recently active.
type ActivityRecord struct {
	ResourceID   string    `json:"resourceId"`
	LastActivity time.Time `json:"lastActivity"`
	UserID       string    `json:"userId"`
	Counter      int       `json:"counter"`
}

// Notification is a user-facing message, optionally kept in the user's log.
type Notification struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	Persistent bool           `json:"persistent"`
	Read       bool           `json:"read"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// IssueEvent describes a change to an issue made by UserID.
type IssueEvent struct {
	Type      string         `json:"type"` // created, updated, deleted, commented, ...
	IssueID   string         `json:"issueId"`
	ProjectID string         `json:"projectId,omitempty"`
	UserID    string         `json:"userId"`
	Data      map[string]any `json:"data,omitempty"`
}

// ProjectEvent describes a change at project scope.
type ProjectEvent struct {
	Type      string         `json:"type"`
	ProjectID string         `json:"projectId"`
	UserID    string         `json:"userId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// RecordingEvent describes a state change of a recording session.
type RecordingEvent struct {
	Type        string         `json:"type"` // started, stopped, processed, failed, ...
	RecordingID string         `json:"recordingId"`
	ProjectID   string         `json:"projectId,omitempty"`
	UserID      string         `json:"userId,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Envelope is the frame exchanged with clients in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
