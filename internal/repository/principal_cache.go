package repository

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/domain"
)

const principalKeyPrefix = "task-service:principal:"

// PrincipalCache serves authenticated-principal lookups from Redis and falls
// back to the user repository on a miss. Cached entries never carry the password hash.
type PrincipalCache struct {
	users  UserRepository
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

type cachedPrincipal struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPrincipalCache wraps users with a Redis read-through cache.
func NewPrincipalCache(users UserRepository, client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *PrincipalCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrincipalCache{users: users, client: client, ttl: ttl, logger: logger}
}

// GetByEmail returns the principal for email. Redis failures degrade to a repository read.
func (p *PrincipalCache) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if p.client == nil || p.ttl <= 0 {
		return p.users.GetByEmail(ctx, email)
	}

	key := principalKeyPrefix + email
	raw, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedPrincipal
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached.user(), nil
		}
		p.logger.Warn("discarding undecodable principal cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		p.logger.Warn("principal cache read failed", zap.Error(err))
	}

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(newCachedPrincipal(user))
	if err == nil {
		err = p.client.Set(ctx, key, payload, p.ttl).Err()
	}
	if err != nil {
		p.logger.Warn("principal cache write failed", zap.Error(err))
	}
	return user.Sanitized(), nil
}

// Invalidate drops the cached entry for email.
func (p *PrincipalCache) Invalidate(ctx context.Context, email string) {
	if p.client == nil {
		return
	}
	if err := p.client.Del(ctx, principalKeyPrefix+email).Err(); err != nil {
		p.logger.Warn("principal cache invalidation failed", zap.Error(err))
	}
}

func newCachedPrincipal(user *domain.User) cachedPrincipal {
	return cachedPrincipal{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func (c cachedPrincipal) user() *domain.User {
	return &domain.User{
		ID:        c.ID,
		Email:     c.Email,
		FullName:  c.FullName,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
