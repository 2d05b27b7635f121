package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
)

// ScopeDeploy allows recording deployments.
const ScopeDeploy = "deploy"

// AuthConfig holds configuration for the auth middleware
type AuthConfig struct {
	// ResourceID is the expected audience. Empty accepts any audience.
	ResourceID string
	// RequiredScope must be granted to the token. Empty accepts any scope.
	RequiredScope string
	// JWTAuthenticator validates bearer tokens
	JWTAuthenticator *utils.JwtAuthenticator
	// SkipWellKnown determines if .well-known endpoints should bypass auth
	SkipWellKnown bool
}

// AuthMiddleware returns a Fiber middleware for Bearer token authentication
func AuthMiddleware(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Allow public access to well-known endpoints for metadata discovery
		if cfg.SkipWellKnown && strings.Contains(c.Path(), ".well-known") {
			return c.Next()
		}

		// Extract Bearer token from Authorization header
		authHeader := c.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}

		if token == "" {
			c.Set("WWW-Authenticate", `Bearer realm="webhost"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid Bearer token",
			})
		}

		if cfg.JWTAuthenticator == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication is not configured",
			})
		}

		user, err := cfg.JWTAuthenticator.ValidateToken(token)
		if err != nil {
			c.Set("WWW-Authenticate", `Bearer realm="webhost", error="invalid_token"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Invalid token",
				"details": err.Error(),
			})
		}

		// Check if user has required audience (if specified)
		if cfg.ResourceID != "" {
			hasValidAudience := false
			for _, userAud := range user.Aud {
				if userAud == cfg.ResourceID {
					hasValidAudience = true
					break
				}
			}
			if !hasValidAudience {
				c.Set("WWW-Authenticate", `Bearer realm="webhost", error="invalid_token"`)
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid audience",
				})
			}
		}

		if cfg.RequiredScope != "" && !user.HasScope(cfg.RequiredScope) {
			c.Set("WWW-Authenticate", `Bearer realm="webhost", error="insufficient_scope"`)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Missing scope " + cfg.RequiredScope,
			})
		}

		// Store authenticated user in context
		c.Locals("user", user)
		return c.Next()
	}
}

// GetAuthenticatedUser retrieves the authenticated user from Fiber context
// Returns nil if no user is found or if user is not of correct type
func GetAuthenticatedUser(c *fiber.Ctx) *utils.AuthenticatedUser {
	user, ok := c.Locals("user").(*utils.AuthenticatedUser)
	if !ok {
		return nil
	}
	return user
}
