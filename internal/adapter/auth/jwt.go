package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const DefaultTokenTTL = 24 * time.Hour

type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Claims are the registered claims plus the caller's role.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 access tokens.
type JWTManager struct {
	config JWTConfig
	now    func() time.Time
}

var _ port.TokenManager = (*JWTManager)(nil)

func NewJWTManager(config JWTConfig) (*JWTManager, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTokenTTL
	}
	return &JWTManager{config: config, now: time.Now}, nil
}

func (m *JWTManager) Issue(user *domain.User) (*port.IssuedToken, error) {
	now := m.now()
	expiresAt := now.Add(m.config.TTL)
	tokenID := uuid.NewString()

	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    m.config.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &port.IssuedToken{Token: signed, TokenID: tokenID, ExpiresAt: expiresAt}, nil
}

func (m *JWTManager) Verify(tokenString string) (*domain.Principal, time.Time, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.config.Secret, nil
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse token: %w", err)
	}

	if claims.Subject == "" {
		return nil, time.Time{}, errors.New("missing subject claim")
	}
	if claims.ID == "" {
		return nil, time.Time{}, errors.New("missing token id claim")
	}

	principal := &domain.Principal{
		UserID:  claims.Subject,
		Role:    claims.Role,
		TokenID: claims.ID,
	}
	return principal, claims.ExpiresAt.Time, nil
}
