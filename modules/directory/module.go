package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/qa-realtime/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module serves user status and project membership lookups.
type Module struct {
	db       *gorm.DB
	repo     *Repository
	dbPath   string
	seedFile string
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new directory module backed by the SQLite file at dbPath.
// seedFile is optional.
func NewModule(dbPath, seedFile string, logger types.Logger) *Module {
	return &Module{
		dbPath:   dbPath,
		seedFile: seedFile,
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "directory"
}

// Start opens the database, migrates it and applies the seed file.
func (m *Module) Start(ctx context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db
	m.repo = NewRepository(db)

	if err := m.repo.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if m.seedFile != "" {
		seed, err := LoadSeed(m.seedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, m.repo); err != nil {
			return err
		}
		m.logger.Info("Directory seeded", "file", m.seedFile, "users", len(seed.Users))
	}

	m.logger.Info("Directory module started", "database", m.dbPath)
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Directory module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"database": m.dbPath},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUser, json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUser, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListUserProjects, json.Unmarshal, json.Marshal, m.handleListUserProjects,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListUserProjects, err)
	}

	m.logger.Info("Registered directory services", "services", []string{ServiceGetUser, ServiceListUserProjects})
	return nil
}

// RegisterEventConsumers subscribes to presence transitions.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.PresenceChangedV1, m.handlePresenceChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register PresenceChanged consumer: %w", err)
	}
	return nil
}

func (m *Module) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.repo.GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return GetUserResponse{Found: false}, nil
		}
		return GetUserResponse{}, err
	}

	return GetUserResponse{
		Found:  true,
		ID:     user.ID,
		Role:   user.Role,
		Active: user.Active,
	}, nil
}

func (m *Module) handleListUserProjects(ctx context.Context, req ListUserProjectsRequest, _ *mono.Msg) (ListUserProjectsResponse, error) {
	projectIDs, err := m.repo.ListUserProjects(ctx, req.UserID)
	if err != nil {
		return ListUserProjectsResponse{}, err
	}
	if projectIDs == nil {
		projectIDs = []string{}
	}
	return ListUserProjectsResponse{ProjectIDs: projectIDs}, nil
}

func (m *Module) handlePresenceChanged(ctx context.Context, event events.PresenceChangedEvent, _ *mono.Msg) error {
	if err := m.repo.RecordPresence(ctx, event.UserID, event.Status, event.LastSeen); err != nil {
		m.logger.Warn("Failed to record presence", "userID", event.UserID, "error", err)
	}
	return nil
}
