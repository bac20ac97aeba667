package handlers

import (
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/realtime"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

const chatUserKey = "chat_user_id"

// ChatHandler upgrades chat requests and hands sockets to the connection registry.
type ChatHandler struct {
	registry        *realtime.Registry
	guard           *auth.Guard
	requireToken    bool
	maxMessageBytes int64
	logger          *zap.Logger
}

// ChatOptions tunes the chat endpoint.
type ChatOptions struct {
	RequireToken    bool
	MaxMessageBytes int64
}

// NewChatHandler constructs handler. guard is only consulted when RequireToken is set.
func NewChatHandler(registry *realtime.Registry, guard *auth.Guard, opts ChatOptions, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		registry:        registry,
		guard:           guard,
		requireToken:    opts.RequireToken,
		maxMessageBytes: opts.MaxMessageBytes,
		logger:          logger,
	}
}

// Upgrade validates the handshake of GET /ws/chat/:user_id.
func (h *ChatHandler) Upgrade(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("user_id"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("invalid user id", map[string]any{"user_id": "value is not a valid integer"})
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	if h.requireToken {
		user, err := h.guard.AuthenticateToken(c.UserContext(), c.Query("token"))
		if err != nil {
			return auth.UnauthorizedError(c, err)
		}
		if user.ID != userID {
			return apperrors.NewForbidden("token does not match channel user")
		}
	}

	c.Locals(chatUserKey, userID)
	return c.Next()
}

// Serve returns the websocket handler that runs one chat session.
func (h *ChatHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(chatUserKey).(int64)
		if h.maxMessageBytes > 0 {
			conn.SetReadLimit(h.maxMessageBytes)
		}
		if err := h.registry.Serve(conn, strconv.FormatInt(userID, 10)); err != nil {
			h.logger.Warn("chat session rejected", zap.Int64("user_id", userID), zap.Error(err))
		}
	})
}
