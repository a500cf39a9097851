package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const clientIDLocal = "client_id"

// clientCookieTTL keeps a browser on the same favorite set for a year
const clientCookieTTL = 365 * 24 * time.Hour

// ClientID identifies the calling browser by cookie, issuing a new random id
// when the cookie is missing or malformed
func ClientID(cookieName string, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(cookieName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     cookieName,
				Value:    id,
				Path:     "/",
				Expires:  time.Now().Add(clientCookieTTL),
				HTTPOnly: true,
				Secure:   secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		c.Locals(clientIDLocal, id)
		return c.Next()
	}
}

// GetClientID extracts the client ID from the context
func GetClientID(c *fiber.Ctx) string {
	if id, ok := c.Locals(clientIDLocal).(string); ok {
		return id
	}
	return ""
}
