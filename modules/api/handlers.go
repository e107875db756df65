package api

import (
	domain "github.com/example/qa-realtime/domain/realtime"
	"github.com/example/qa-realtime/modules/realtime"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)
	if m.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.metrics))
	}

	// WebSocket endpoint
	app.Use("/ws", HandshakeMiddleware(m.gateway))
	app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	v1 := app.Group("/api/v1", AuthMiddleware(m.gateway))
	v1.Get("/notifications", m.listNotifications)
	v1.Post("/notifications/:id/read", m.markNotificationRead)
	v1.Get("/recordings/active", m.activeRecordings)
	v1.Get("/presence/:userId", m.getPresence)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module": "api",
		},
	})
}

// handleWebSocket runs an upgraded connection until it closes.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	ident, ok := c.Locals(IdentityContextKey).(realtime.Identity)
	if !ok {
		m.logger.Warn("WebSocket upgraded without identity")
		_ = c.Close()
		return
	}
	m.gateway.Serve(m.ctx, c, ident)
}

// listNotifications handles GET /api/v1/notifications.
func (m *APIModule) listNotifications(c *fiber.Ctx) error {
	ident := identityFrom(c)
	list, err := m.realtime.GetUserNotifications(c.UserContext(), ident.UserID)
	if err != nil {
		m.logger.Error("Failed to list notifications", "userID", ident.UserID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list notifications",
		})
	}
	return c.JSON(NotificationListResponse{Notifications: list})
}

// markNotificationRead handles POST /api/v1/notifications/:id/read.
func (m *APIModule) markNotificationRead(c *fiber.Ctx) error {
	ident := identityFrom(c)
	id := c.Params("id")

	found, err := m.realtime.MarkNotificationRead(c.UserContext(), ident.UserID, id)
	if err != nil {
		m.logger.Error("Failed to mark notification read", "userID", ident.UserID, "notificationID", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "update_failed",
			Message: "Failed to update notification",
		})
	}
	// An unknown id is a no-op, reported with read=false.
	return c.JSON(MarkReadResponse{ID: id, Read: found})
}

// activeRecordings handles GET /api/v1/recordings/active.
func (m *APIModule) activeRecordings(c *fiber.Ctx) error {
	ids, err := m.realtime.GetActiveRecordings(c.UserContext())
	if err != nil {
		m.logger.Error("Failed to list active recordings", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list active recordings",
		})
	}
	return c.JSON(ActiveRecordingsResponse{RecordingIDs: ids})
}

// getPresence handles GET /api/v1/presence/:userId. A user without a live
// presence record is reported offline.
func (m *APIModule) getPresence(c *fiber.Ctx) error {
	userID := c.Params("userId")

	resp, err := m.realtime.GetPresence(c.UserContext(), userID)
	if err != nil {
		m.logger.Error("Failed to get presence", "userID", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "lookup_failed",
			Message: "Failed to get presence",
		})
	}

	out := PresenceResponse{
		UserID:    userID,
		Status:    domain.StatusOffline,
		Connected: resp.Connected,
	}
	if resp.Found {
		out.Status = resp.Presence.Status
		lastSeen := resp.Presence.LastSeen
		out.LastSeen = &lastSeen
	}
	return c.JSON(out)
}
