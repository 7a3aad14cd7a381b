package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

const redisKeyPrefix = "guardian:verified:"

// RedisRegistry stores entries with a TTL matching the approval expiry,
// so Redis evicts them when the approval lapses.
type RedisRegistry struct {
	client redis.UniversalClient
}

func NewRedisRegistry(client redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func key(subject id.SubjectID) string {
	return redisKeyPrefix + string(subject)
}

func (r *RedisRegistry) Register(ctx context.Context, e Entry) error {
	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode verified entry: %w", err)
	}
	if err := r.client.Set(ctx, key(e.SubjectID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save verified entry: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Lookup(ctx context.Context, subject id.SubjectID, now time.Time) (*Entry, error) {
	data, err := r.client.Get(ctx, key(subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verified entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode verified entry: %w", err)
	}
	if !now.Before(e.ExpiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (r *RedisRegistry) Remove(ctx context.Context, subject id.SubjectID) error {
	if err := r.client.Del(ctx, key(subject)).Err(); err != nil {
		return fmt.Errorf("remove verified entry: %w", err)
	}
	return nil
}
