package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequireActive rejects authenticated principals whose account is disabled.
func RequireActive() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, ErrNotAuthenticated.Error())
		}
		if !user.IsActive {
			return fiber.NewError(http.StatusForbidden, "inactive user")
		}
		return c.Next()
	}
}
