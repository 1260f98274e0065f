package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// DeleteIdempotency releases a key claimed by a request that failed
	DeleteIdempotency(ctx context.Context, key string) error

	// RevokeToken blacklists a token id until ttl elapses
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error

	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)

	// RegisterFailedLogin counts a failed attempt within window and reports
	// whether the subject is still under limit
	RegisterFailedLogin(ctx context.Context, subject string, limit int, window time.Duration) (bool, error)

	// LoginBlocked reports whether the subject already used up its attempts
	LoginBlocked(ctx context.Context, subject string, limit int) (bool, error)

	ResetLoginAttempts(ctx context.Context, subject string) error
}
