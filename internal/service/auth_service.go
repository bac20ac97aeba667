package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
)

// dummyPasswordHash is verified for unknown users so that failed logins take
// the same time whether or not the account exists.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// TokenTypeBearer is the OAuth2 token type of issued access tokens.
const TokenTypeBearer = "bearer"

// ErrEmailTaken is returned when registering an email that already has an account.
var ErrEmailTaken = errors.New("email already registered")

// LoginRecorder observes login outcomes.
type LoginRecorder interface {
	RecordLogin(result string)
}

// PrincipalInvalidator drops cached principal state after an account changes.
type PrincipalInvalidator interface {
	Invalidate(ctx context.Context, email string)
}

// AccessToken is the result of a successful login.
type AccessToken struct {
	Token     string
	TokenType string
	ExpiresIn time.Duration
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email    string
	FullName string
	Password string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	hasher     auth.PasswordHasher
	tokens     *auth.TokenService
	dispatcher events.Dispatcher
	recorder   LoginRecorder
	principals PrincipalInvalidator
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Hasher     auth.PasswordHasher
	Tokens     *auth.TokenService
	Dispatcher events.Dispatcher
	Recorder   LoginRecorder
	Principals PrincipalInvalidator
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewArgon2idHasher()
	}
	return &AuthService{
		users:      deps.UserRepo,
		hasher:     hasher,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		recorder:   deps.Recorder,
		principals: deps.Principals,
		logger:     logger,
	}
}

// Register creates a new active account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        input.Email,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:    events.EventUserRegistered,
		UserID:  user.ID,
		Payload: events.UserRegisteredPayload{Email: user.Email},
	})
	return user, nil
}

// Login verifies credentials and issues an access token whose subject is the
// account email. Unknown accounts and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AccessToken, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		s.hasher.Verify(password, dummyPasswordHash)
		s.recordLogin("failure")
		return nil, auth.ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.recordLogin("failure")
		return nil, auth.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, err := s.tokens.Issue(auth.SubjectClaims(user.Email))
	if err != nil {
		return nil, err
	}
	s.recordLogin("success")
	return &AccessToken{Token: token, TokenType: TokenTypeBearer, ExpiresIn: s.tokens.Validity()}, nil
}

// upgradeHash re-hashes a legacy credential. Failures are logged and do not fail the login.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("password rehash failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	updated := *user
	updated.PasswordHash = hash
	if err := s.users.Update(ctx, &updated); err != nil {
		s.logger.Warn("persisting upgraded password hash failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	if s.principals != nil {
		s.principals.Invalidate(ctx, user.Email)
	}
	s.logger.Info("password hash upgraded", zap.Int64("user_id", user.ID))
}

func (s *AuthService) recordLogin(result string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(result)
	}
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
