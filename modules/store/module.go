package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Supported drivers.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config holds store connection settings.
type Config struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Module owns the store client lifecycle.
type Module struct {
	cfg    Config
	store  Store
	redis  *RedisStore
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the store eagerly so other modules can be wired with it
// before the application starts. The Redis client dials lazily.
func NewModule(cfg Config, logger types.Logger) (*Module, error) {
	m := &Module{cfg: cfg, logger: logger}

	switch cfg.Driver {
	case DriverMemory:
		m.store = NewMemoryStore()
	case DriverRedis, "":
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		m.redis = NewRedisStore(client)
		m.store = m.redis
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}

	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start checks connectivity. An unreachable store is logged, not fatal:
// presence and notifications degrade while broadcasting keeps working.
func (m *Module) Start(ctx context.Context) error {
	if m.redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := m.redis.Ping(pingCtx); err != nil {
			m.logger.Warn("Redis unreachable, store-backed features degraded",
				"addr", m.cfg.RedisAddr, "error", err)
		} else {
			m.logger.Info("Connected to Redis", "addr", m.cfg.RedisAddr, "db", m.cfg.RedisDB)
		}
		return nil
	}
	m.logger.Info("Using in-memory store")
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	m.logger.Info("Store module stopped")
	return nil
}

// Health reports whether the store answers.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.redis == nil {
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"driver": DriverMemory},
		}
	}
	if err := m.redis.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
			Details: map[string]any{"driver": DriverRedis, "addr": m.cfg.RedisAddr},
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"driver": DriverRedis, "addr": m.cfg.RedisAddr},
	}
}

// Store returns the configured store.
func (m *Module) Store() Store {
	return m.store
}
