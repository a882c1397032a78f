// middleware/gateway.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayTokenEnv names the env var holding the shared secret the gateway
// attaches to every request it proxies to the node service.
const GatewayTokenEnv = "NODE_SERVICE_TOKEN"

// GatewayAuthMiddleware rejects any request that does not carry the
// gateway's bearer token. Status flips, heartbeats and check-ins never
// arrive directly from end users; everything comes through the gateway.
func GatewayAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv(GatewayTokenEnv)
	if expectedToken == "" {
		log.Fatalf("❌ %s is not set — cannot authenticate the gateway", GatewayTokenEnv)
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Printf("🚫 [GATEWAY_AUTH] Missing Authorization header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		// Accept "Bearer <token>" or the raw token.
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != expectedToken {
			log.Printf("🚫 [GATEWAY_AUTH] Invalid token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}

		return c.Next()
	}
}
