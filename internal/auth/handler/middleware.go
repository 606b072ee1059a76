package handler

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const localClaimsKey = "claims"

// RequireAuth verifies the bearer access token and stashes its claims for
// the downstream handler.
func (h *AuthHandler) RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)

	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}

	claims, err := h.tokenService.VerifyAccessToken(token)
	if err != nil {
		return respondError(c, err)
	}

	c.Locals(localClaimsKey, claims)

	return c.Next()
}

// RequireAdminKey guards operational endpoints with a static API key. With
// no key configured the endpoints are unreachable.
func (h *AuthHandler) RequireAdminKey(c *fiber.Ctx) error {
	key := c.Get("X-Admin-Api-Key")

	if h.adminAPIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.adminAPIKey)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	return c.Next()
}
