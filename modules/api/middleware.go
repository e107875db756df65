package api

import (
	"github.com/example/qa-realtime/modules/realtime"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// IdentityContextKey is the key used to store the caller's identity in the Fiber context.
const IdentityContextKey = "identity"

// HandshakeMiddleware authenticates a websocket upgrade request before the
// upgrade happens. The token is read from the "token" query parameter or the
// Authorization header. Rejections carry the reason in the "error" field.
func HandshakeMiddleware(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := realtime.TokenFromRequest(c.Query("token"), c.Get("Authorization"))
		ident, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: err.Error()})
		}

		c.Locals(IdentityContextKey, ident)
		return c.Next()
	}
}

// AuthMiddleware authenticates REST requests carrying a bearer token.
func AuthMiddleware(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := realtime.TokenFromRequest("", c.Get("Authorization"))
		ident, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: err.Error(),
			})
		}

		c.Locals(IdentityContextKey, ident)
		return c.Next()
	}
}

func identityFrom(c *fiber.Ctx) realtime.Identity {
	ident, _ := c.Locals(IdentityContextKey).(realtime.Identity)
	return ident
}
