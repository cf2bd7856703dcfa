package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CronAuthMiddleware validates the bearer credential on the sync trigger.
// The secret is supplied by the caller at construction, never read from the
// environment here.
func CronAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Printf("[CRON_AUTH] missing Authorization header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != secret {
			log.Printf("[CRON_AUTH] invalid trigger credential for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
