package directory

import (
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user is not in the directory.
var ErrUserNotFound = errors.New("user not found")

// User is a directory entry for an account allowed to open realtime connections.
type User struct {
	ID         string `gorm:"primaryKey;type:text"`
	Email      string `gorm:"index;type:text"`
	Role       string `gorm:"not null;default:member;type:text"`
	Active     bool   `gorm:"not null"`
	LastStatus string `gorm:"type:text"`
	LastSeenAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// ProjectMember links a user to a project.
type ProjectMember struct {
	ProjectID string `gorm:"primaryKey;type:text"`
	UserID    string `gorm:"primaryKey;index;type:text"`
	CreatedAt time.Time
}

// TableName returns the table name for the ProjectMember entity.
func (ProjectMember) TableName() string {
	return "project_members"
}

// Profile is the subset of a user that callers outside the directory see.
type Profile struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}
