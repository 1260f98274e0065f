package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	revokedKeyPrefix     = "revoked:"
	loginKeyPrefix       = "login-attempts:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// countAttemptScript increments the counter and starts its window on the
// first hit, so the window is never extended by later attempts.
var countAttemptScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])

local attempts = redis.call('INCR', key)
if attempts == 1 then
	redis.call('PEXPIRE', key, window)
end

return attempts
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) DeleteIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisAdapter) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisAdapter) RegisterFailedLogin(ctx context.Context, subject string, limit int, window time.Duration) (bool, error) {
	attempts, err := countAttemptScript.Run(ctx, r.client, []string{loginKeyPrefix + subject}, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return attempts < limit, nil
}

func (r *RedisAdapter) LoginBlocked(ctx context.Context, subject string, limit int) (bool, error) {
	attempts, err := r.client.Get(ctx, loginKeyPrefix+subject).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return attempts >= limit, nil
}

func (r *RedisAdapter) ResetLoginAttempts(ctx context.Context, subject string) error {
	return r.client.Del(ctx, loginKeyPrefix+subject).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
