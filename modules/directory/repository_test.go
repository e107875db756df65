package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	domain "github.com/example/qa-realtime/domain/directory"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

func setupTestRepository(t *testing.T) *Repository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "directory.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	repo := NewRepository(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return repo
}

func TestRepository_GetUser(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	if err := repo.UpsertUser(ctx, &domain.User{ID: "u1", Email: "qa@example.com", Role: "admin", Active: true}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	tests := []struct {
		name        string
		userID      string
		expectError error
	}{
		{name: "existing user", userID: "u1"},
		{name: "missing user", userID: "ghost", expectError: ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := repo.GetUser(ctx, tt.userID)
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("GetUser() error = %v, want %v", err, tt.expectError)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetUser() unexpected error: %v", err)
			}
			if user.Role != "admin" || !user.Active {
				t.Errorf("GetUser() = %+v, want active admin", user)
			}
		})
	}
}

func TestRepository_UpsertUserDeactivates(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	_ = repo.UpsertUser(ctx, &domain.User{ID: "u1", Role: "member", Active: true})
	if err := repo.UpsertUser(ctx, &domain.User{ID: "u1", Role: "member", Active: false}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	user, err := repo.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.Active {
		t.Error("user should be inactive after upsert")
	}
}

func TestRepository_ProjectMembership(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	_ = repo.UpsertUser(ctx, &domain.User{ID: "u1", Role: "member", Active: true})
	for _, projectID := range []string{"p42", "p7", "p42"} {
		if err := repo.AddProjectMember(ctx, projectID, "u1"); err != nil {
			t.Fatalf("AddProjectMember(%s) error = %v", projectID, err)
		}
	}

	projects, err := repo.ListUserProjects(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUserProjects() error = %v", err)
	}
	if len(projects) != 2 || projects[0] != "p42" || projects[1] != "p7" {
		t.Errorf("ListUserProjects() = %v, want [p42 p7]", projects)
	}

	projects, err = repo.ListUserProjects(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListUserProjects() error = %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("ListUserProjects() for unknown user = %v, want empty", projects)
	}
}

func TestRepository_RecordPresence(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	_ = repo.UpsertUser(ctx, &domain.User{ID: "u1", Role: "member", Active: true})
	seen := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	if err := repo.RecordPresence(ctx, "u1", "offline", seen); err != nil {
		t.Fatalf("RecordPresence() error = %v", err)
	}
	if err := repo.RecordPresence(ctx, "ghost", "online", seen); err != nil {
		t.Errorf("RecordPresence() for unknown user error = %v", err)
	}

	user, _ := repo.GetUser(ctx, "u1")
	if user.LastStatus != "offline" {
		t.Errorf("LastStatus = %q, want %q", user.LastStatus, "offline")
	}
	if user.LastSeenAt == nil || !user.LastSeenAt.Equal(seen) {
		t.Errorf("LastSeenAt = %v, want %v", user.LastSeenAt, seen)
	}
}

func TestSeed_LoadAndApply(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `users:
  - id: u1
    email: lead@example.com
    role: admin
    projects: [p42, p7]
  - id: u2
    inactive: true
    projects: [p42]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write seed: %v", err)
	}

	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	if len(seed.Users) != 2 {
		t.Fatalf("LoadSeed() users = %d, want 2", len(seed.Users))
	}
	if err := seed.Apply(ctx, repo); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	u2, err := repo.GetUser(ctx, "u2")
	if err != nil {
		t.Fatalf("GetUser(u2) error = %v", err)
	}
	if u2.Active || u2.Role != "member" {
		t.Errorf("u2 = %+v, want inactive member", u2)
	}

	projects, _ := repo.ListUserProjects(ctx, "u1")
	if len(projects) != 2 {
		t.Errorf("u1 projects = %v, want 2 entries", projects)
	}
}

func TestLoadSeed_Invalid(t *testing.T) {
	dir := t.TempDir()

	missingID := filepath.Join(dir, "missing-id.yaml")
	_ = os.WriteFile(missingID, []byte("users:\n  - email: x@example.com\n"), 0o600)
	if _, err := LoadSeed(missingID); err == nil {
		t.Error("LoadSeed() expected error for user without id")
	}

	if _, err := LoadSeed(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("LoadSeed() expected error for missing file")
	}
}

func TestModule_Handlers(t *testing.T) {
	ctx := context.Background()
	m := NewModule(filepath.Join(t.TempDir(), "dir.db"), "", &mockLogger{})
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop(ctx)

	_ = m.repo.UpsertUser(ctx, &domain.User{ID: "u1", Role: "qa", Active: true})
	_ = m.repo.AddProjectMember(ctx, "p42", "u1")

	resp, err := m.handleGetUser(ctx, GetUserRequest{UserID: "u1"}, nil)
	if err != nil {
		t.Fatalf("handleGetUser() error = %v", err)
	}
	if !resp.Found || resp.Role != "qa" || !resp.Active {
		t.Errorf("handleGetUser() = %+v", resp)
	}

	resp, err = m.handleGetUser(ctx, GetUserRequest{UserID: "ghost"}, nil)
	if err != nil {
		t.Fatalf("handleGetUser() for missing user error = %v", err)
	}
	if resp.Found {
		t.Error("handleGetUser() for missing user should report Found = false")
	}

	projects, err := m.handleListUserProjects(ctx, ListUserProjectsRequest{UserID: "ghost"}, nil)
	if err != nil {
		t.Fatalf("handleListUserProjects() error = %v", err)
	}
	if projects.ProjectIDs == nil {
		t.Error("handleListUserProjects() should return an empty, non-nil list")
	}

	if health := m.Health(ctx); !health.Healthy {
		t.Errorf("Health() = %+v, want healthy", health)
	}
}
