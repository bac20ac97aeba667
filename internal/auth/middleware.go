package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/domain"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	guard *Guard
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(guard *Guard) *AuthMiddleware {
	return &AuthMiddleware{guard: guard}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	user, err := m.guard.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return UnauthorizedError(c, err)
	}

	c.Locals(principalKey, user)
	return c.Next()
}

// UnauthorizedError renders uniform authentication failures as 401 with a
// bearer challenge and passes any other error through.
func UnauthorizedError(c *fiber.Ctx, err error) error {
	if IsUnauthenticated(err) {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return apperrors.NewUnauthorized(err.Error())
	}
	return err
}

// PrincipalFromContext retrieves the authenticated user.
func PrincipalFromContext(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok && user != nil
}
