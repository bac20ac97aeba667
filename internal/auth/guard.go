package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
)

// UserLookup resolves token subjects to user records.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Guard turns bearer credentials into an authenticated principal.
type Guard struct {
	tokens *TokenService
	users  UserLookup
	logger *zap.Logger
}

// NewGuard constructs a guard.
func NewGuard(tokens *TokenService, users UserLookup, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{tokens: tokens, users: users, logger: logger}
}

// Authenticate resolves the principal named by an Authorization header value.
func (g *Guard) Authenticate(ctx context.Context, authorization string) (*domain.User, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return g.AuthenticateToken(ctx, token)
}

// AuthenticateToken resolves the principal of a raw token. Invalid tokens and
// unknown subjects fail identically with ErrCouldNotValidate.
func (g *Guard) AuthenticateToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		g.logger.Debug("token rejected", zap.Error(err))
		return nil, ErrCouldNotValidate
	}

	user, err := g.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			g.logger.Debug("token subject not found")
			return nil, ErrCouldNotValidate
		}
		return nil, oops.With("operation", "resolve_principal").Wrap(err)
	}
	return user, nil
}

// BearerToken extracts the credentials of a "Bearer <token>" header value.
func BearerToken(authorization string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
