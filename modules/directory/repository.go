package directory

import (
	"context"
	"errors"
	"time"

	domain "github.com/example/qa-realtime/domain/directory"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUserNotFound is returned when a user is not in the directory.
var ErrUserNotFound = domain.ErrUserNotFound

// Repository handles directory persistence using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the directory tables.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&domain.User{}, &domain.ProjectMember{})
}

// GetUser finds a user by ID.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// ListUserProjects returns the IDs of the projects the user belongs to.
func (r *Repository) ListUserProjects(ctx context.Context, userID string) ([]string, error) {
	var projectIDs []string
	result := r.db.WithContext(ctx).
		Model(&domain.ProjectMember{}).
		Where("user_id = ?", userID).
		Order("project_id").
		Pluck("project_id", &projectIDs)
	if result.Error != nil {
		return nil, result.Error
	}
	return projectIDs, nil
}

// UpsertUser inserts the user or updates its email, role and active flag.
func (r *Repository) UpsertUser(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "role", "active", "updated_at"}),
	}).Create(user).Error
}

// AddProjectMember links a user to a project. Adding an existing link is a no-op.
func (r *Repository) AddProjectMember(ctx context.Context, projectID, userID string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ProjectMember{ProjectID: projectID, UserID: userID}).Error
}

// RecordPresence stores the last presence status seen for a user.
// Unknown users are ignored.
func (r *Repository) RecordPresence(ctx context.Context, userID, status string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"last_status": status, "last_seen_at": at}).Error
}
