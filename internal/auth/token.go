package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenConfig is the immutable signing configuration of a TokenService.
type TokenConfig struct {
	Secret    string
	Algorithm string
	Validity  time.Duration
}

// Claims is the identity claim set carried inside access tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// SubjectClaims builds a claim set identifying subject.
func SubjectClaims(subject string) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// TokenService issues and validates HMAC-signed JWT access tokens.
// It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret   []byte
	method   jwt.SigningMethod
	validity time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewTokenService validates cfg and builds a service.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: token secret is required", ErrInvalidInput)
	}
	if cfg.Validity <= 0 {
		return nil, fmt.Errorf("%w: token validity must be positive", ErrInvalidInput)
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported signing algorithm %q", ErrInvalidInput, cfg.Algorithm)
	}

	s := &TokenService{
		secret:   []byte(cfg.Secret),
		method:   method,
		validity: cfg.Validity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// Validity returns the default lifetime of issued tokens.
func (s *TokenService) Validity() time.Duration {
	return s.validity
}

// Issue signs claims with the default validity.
func (s *TokenService) Issue(claims Claims) (string, error) {
	return s.IssueFor(claims, s.validity)
}

// IssueFor signs claims with an explicit validity, overwriting iat and exp.
func (s *TokenService) IssueFor(claims Claims, validity time.Duration) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if validity <= 0 {
		return "", fmt.Errorf("%w: validity must be positive", ErrInvalidInput)
	}

	now := s.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(validity))

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify parses tokenStr and returns its claims. Every failure, including a
// missing subject, is reported as ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := s.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
