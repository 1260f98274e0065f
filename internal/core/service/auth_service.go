package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const minPasswordLength = 8

type LoginPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

type AuthService struct {
	users  port.UserRepository
	cache  port.CacheRepository
	hasher port.PasswordHasher
	tokens port.TokenManager
	policy LoginPolicy
	logger *zap.Logger
}

func NewAuthService(
	users port.UserRepository,
	cache port.CacheRepository,
	hasher port.PasswordHasher,
	tokens port.TokenManager,
	policy LoginPolicy,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		cache:  cache,
		hasher: hasher,
		tokens: tokens,
		policy: policy,
		logger: logger,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return s.createUser(ctx, in, domain.RoleUser)
}

// EnsureAdmin creates an admin account unless the email is already taken.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return nil
	}
	if !domain.IsNotFound(err) {
		return fmt.Errorf("look up admin: %w", err)
	}

	user, err := s.createUser(ctx, RegisterInput{Name: "Administrator", Email: email, Password: password}, domain.RoleAdmin)
	if err != nil {
		return err
	}

	s.logger.Info("bootstrap admin created", zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, &InvalidInputError{Field: "email", Reason: "must be a valid email address"}
	}
	if len(in.Password) < minPasswordLength {
		return nil, &InvalidInputError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Login checks the credentials and issues an access token. Failed attempts
// are counted per email and lock the email out for the rest of the window.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	blocked, err := s.cache.LoginBlocked(ctx, email, s.policy.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("check login attempts: %w", err)
	}
	if blocked {
		return nil, ErrTooManyAttempts
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !domain.IsNotFound(err) {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil || s.hasher.Compare(user.PasswordHash, password) != nil {
		if _, err := s.cache.RegisterFailedLogin(ctx, email, s.policy.MaxAttempts, s.policy.Window); err != nil {
			s.logger.Warn("failed to record login attempt", zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.cache.ResetLoginAttempts(ctx, email); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	issued, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("user signed in", zap.String("user_id", user.ID))
	return &Session{User: user, Token: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}

// Authenticate verifies a bearer token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	principal, _, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	revoked, err := s.cache.IsTokenRevoked(ctx, principal.TokenID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrInvalidCredentials)
	}
	return principal, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	principal, expiresAt, err := s.tokens.Verify(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.RevokeToken(ctx, principal.TokenID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	s.logger.Info("user signed out", zap.String("user_id", principal.UserID))
	return nil
}

// GetUser applies the admin-or-owner rule; other users' profiles are not found.
func (s *AuthService) GetUser(ctx context.Context, principal domain.Principal, id string) (*domain.User, error) {
	if !principal.CanAccess(id) {
		return nil, &domain.NotFoundError{Resource: "user", Key: "id", Value: id}
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
