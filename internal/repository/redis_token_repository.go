package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:"

// RedisTokenRepo keeps the revocation ledger in Redis. Keys are the SHA-256
// of the exact token string and live as long as the token itself would.
type RedisTokenRepo struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisTokenRepo(rdb *redis.Client) *RedisTokenRepo {
	return &RedisTokenRepo{rdb: rdb, now: time.Now}
}

func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedKeyPrefix + hex.EncodeToString(sum[:])
}

// Revoke sets the key with NX; false means it was already revoked.
func (r *RedisTokenRepo) Revoke(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(r.now())
		if ttl < time.Second {
			ttl = time.Second
		}
	}
	ok, err := r.rdb.SetNX(ctx, revokedKey(token), r.now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis revoke: %w", err)
	}
	return ok, nil
}

func (r *RedisTokenRepo) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis is revoked: %w", err)
	}
	return n > 0, nil
}

// Prune is a no-op: Redis expires keys on its own.
func (r *RedisTokenRepo) Prune(context.Context, time.Time) (int64, error) { return 0, nil }
