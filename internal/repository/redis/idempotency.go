package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jeni5888/mayalens/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const (
	idemKeyPrefix = "mayalens:idem:"
	idemTTL       = 24 * time.Hour
)

type redisIdempotency struct {
	client *goredis.Client
}

// NewIdempotencyStore creates a Redis-backed idempotency store using SET NX.
func NewIdempotencyStore(client *goredis.Client) repository.IdempotencyStore {
	return &redisIdempotency{client: client}
}

func idemKey(ownerID uuid.UUID, key string) string {
	return idemKeyPrefix + ownerID.String() + ":" + key
}

func (r *redisIdempotency) Lookup(ctx context.Context, ownerID uuid.UUID, key string) (uuid.UUID, bool, error) {
	val, err := r.client.Get(ctx, idemKey(ownerID, key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("redis: lookup idempotency key: %w", err)
	}
	jobID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis: malformed idempotency value: %w", err)
	}
	return jobID, true, nil
}

func (r *redisIdempotency) Remember(ctx context.Context, ownerID uuid.UUID, key string, jobID uuid.UUID) error {
	if err := r.client.SetNX(ctx, idemKey(ownerID, key), jobID.String(), idemTTL).Err(); err != nil {
		return fmt.Errorf("redis: remember idempotency key: %w", err)
	}
	return nil
}
