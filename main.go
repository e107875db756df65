package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/qa-realtime/config"
	"github.com/example/qa-realtime/modules/api"
	"github.com/example/qa-realtime/modules/directory"
	"github.com/example/qa-realtime/modules/realtime"
	"github.com/example/qa-realtime/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	log.Println("=== QA Realtime - Fiber WebSocket + Rooms ===")
	log.Printf("Store driver: %s", cfg.StoreDriver)

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	storeModule, err := store.NewModule(store.Config{
		Driver:        cfg.StoreDriver,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create store module: %v", err)
	}

	directoryModule := directory.NewModule(cfg.DirectoryDBPath, cfg.DirectorySeedFile, logger)

	realtimeModule, err := realtime.NewModule(realtime.Config{
		JWTSecret:         cfg.JWTSecret,
		JWTIssuer:         cfg.JWTIssuer,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		PresenceTTL:       cfg.PresenceTTL,
		ActivityTTL:       cfg.ActivityTTL,
		NotificationTTL:   cfg.NotificationTTL,
		NotificationLimit: cfg.NotificationLimit,
		CleanupSchedule:   cfg.CleanupSchedule,
		ClientRateLimit:   cfg.ClientRateLimit,
		ClientRateBurst:   cfg.ClientRateBurst,
	}, storeModule.Store(), logger)
	if err != nil {
		log.Fatalf("Failed to create realtime module: %v", err)
	}

	apiModule := api.NewModule(api.Config{
		Port:               cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	// The gateway owns live connections and is not reachable over the
	// service container, so it is handed over directly.
	apiModule.SetGateway(realtimeModule.Gateway())
	apiModule.SetMetricsHandler(realtimeModule.Metrics().Handler())

	// Register modules with the framework.
	// - store: ephemeral key/value store (Redis or in-memory)
	// - directory: user status and project membership (request-reply services)
	// - realtime: registry, rooms, presence, notifications (depends on directory)
	// - api: Fiber HTTP/WebSocket server (depends on realtime)
	app.Register(storeModule)
	app.Register(directoryModule)
	app.Register(realtimeModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                          - Health check")
	log.Println("  GET    /metrics                         - Prometheus metrics")
	log.Println("  GET    /api/v1/notifications            - Caller's notification log")
	log.Println("  POST   /api/v1/notifications/:id/read   - Mark a notification read")
	log.Println("  GET    /api/v1/recordings/active        - Recordings with recent activity")
	log.Println("  GET    /api/v1/presence/:userId         - Presence of a user")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Println("  Connect with: ws://localhost:" + cfg.Port + "/ws?token=<jwt>")
	log.Println("  Frames: {\"event\": \"issue:subscribe\", \"data\": \"<issueId>\"}")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
