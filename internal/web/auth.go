package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// withAuth enforces the optional bearer token.
// Accept either Authorization: Bearer <token> or query param ?token=<token>.
func (s *Service) withAuth(c *fiber.Ctx) error {
	tok := strings.TrimSpace(s.cfg.Token)
	if tok == "" {
		return c.Next()
	}

	if got := c.Query("token"); got != "" {
		if got == tok {
			return c.Next()
		}
		return unauthorized(c)
	}
	if ah := c.Get(fiber.HeaderAuthorization); ah != "" {
		const p = "Bearer "
		if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			return c.Next()
		}
	}
	return unauthorized(c)
}

func unauthorized(c *fiber.Ctx) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}
