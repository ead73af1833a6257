package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/congo-pay/multisig/internal/identity"
	"github.com/congo-pay/multisig/internal/principal"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token invalidated")
)

// Claims carried by access tokens. The subject is the caller's signing address.
type Claims struct {
	UserID  string `json:"uid"`
	Tier    string `json:"tier,omitempty"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service issues and verifies HS256 access tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	users  identity.Repository
	now    func() time.Time
}

// NewService builds a token service. users resolves token subjects back to principals.
func NewService(secret string, ttl time.Duration, users identity.Repository) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{secret: []byte(secret), ttl: ttl, users: users, now: time.Now}
}

// Issue signs an access token for user.
func (s *Service) Issue(user identity.User) (Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		UserID:  user.ID,
		Tier:    user.Tier,
		Version: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Address.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, ExpiresIn: int64(s.ttl.Seconds()), ExpiresAt: exp.UTC()}, nil
}

// Verify checks the signature, expiry and token version of raw and returns
// the principal it was issued to.
func (s *Service) Verify(ctx context.Context, raw string) (identity.User, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return identity.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	addr, err := principal.Parse(claims.Subject)
	if err != nil {
		return identity.User{}, ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return identity.User{}, ErrTokenRevoked
	}
	if user.Address != addr || user.TokenVersion != claims.Version {
		return identity.User{}, ErrTokenRevoked
	}
	return user, nil
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.users.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}
