package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the expiry horizon applied when none is configured.
const DefaultTokenTTL = time.Hour

// TokenService issues and verifies HS256 identity tokens. The key is fixed at
// construction; a TokenService is safe for concurrent use.
type TokenService struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService builds a service signing with key. A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenService(key []byte, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(key) == 0 {
		return nil, errors.New("auth: empty signing key")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	s := &TokenService{
		key: append([]byte(nil), key...),
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// GenerateKey returns 32 random bytes suitable as an HS256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("auth: generate key: %w", err)
	}
	return key, nil
}

// TTL returns the expiry horizon applied to issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue produces a token for subject stamped with the current time.
func (s *TokenService) Issue(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("auth: empty subject")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded subject.
// The token is rejected for any verification at or after its expiry.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", newAuthError(KindExpired, err)
		}
		return "", newAuthError(KindMalformed, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", newAuthError(KindMalformed, errors.New("missing subject"))
	}
	return claims.Subject, nil
}
