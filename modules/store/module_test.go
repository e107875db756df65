package store

import (
	"context"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
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

func TestNewModule_Drivers(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		expectError bool
		expectRedis bool
	}{
		{name: "memory", driver: DriverMemory},
		{name: "redis", driver: DriverRedis, expectRedis: true},
		{name: "default is redis", driver: "", expectRedis: true},
		{name: "unknown", driver: "etcd", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewModule(Config{Driver: tt.driver, RedisAddr: testRedisAddr}, &mockLogger{})
			if tt.expectError {
				if err == nil {
					t.Error("NewModule() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewModule() unexpected error: %v", err)
			}
			if m.Store() == nil {
				t.Fatal("Store() returned nil")
			}
			if (m.redis != nil) != tt.expectRedis {
				t.Errorf("redis backend = %v, want %v", m.redis != nil, tt.expectRedis)
			}
			_ = m.Stop(context.Background())
		})
	}
}

func TestModule_MemoryLifecycle(t *testing.T) {
	m, err := NewModule(Config{Driver: DriverMemory}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	ctx := context.Background()

	if name := m.Name(); name != "store" {
		t.Errorf("Name() = %q, want %q", name, "store")
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if health := m.Health(ctx); !health.Healthy {
		t.Errorf("Health() = %+v, want healthy", health)
	}
	if err := m.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
