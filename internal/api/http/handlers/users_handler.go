package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/dto"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/service"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// UsersHandler exposes registration, login and the current principal.
type UsersHandler struct {
	auth      *service.AuthService
	validator *dto.Validator
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, validator *dto.Validator) *UsersHandler {
	return &UsersHandler{auth: authService, validator: validator}
}

// Register handles POST /api/v1/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return apperrors.NewBadRequest(err.Error())
		}
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Login handles POST /api/v1/login with the OAuth2 password form or JSON.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return auth.UnauthorizedError(c, err)
	}
	return c.JSON(dto.TokenResponse{
		AccessToken: token.Token,
		TokenType:   token.TokenType,
		ExpiresIn:   int64(token.ExpiresIn.Seconds()),
	})
}

// Me handles GET /api/v1/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized(auth.ErrNotAuthenticated.Error())
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}
