package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "guardian/pkg/domain"
)

const redisKeyPrefix = "guardian:idem:"

// Redis shares reservations across replicas using SET NX with a TTL.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Reserve ignores now; Redis expires keys by its own clock.
func (s *Redis) Reserve(ctx context.Context, key string, reportID id.ReportID, _ time.Time, ttl time.Duration) (id.ReportID, bool, error) {
	// The holder can expire between SET NX and GET; one retry covers it.
	for range 2 {
		ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, reportID.String(), ttl).Result()
		if err != nil {
			return id.ReportID{}, false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return reportID, true, nil
		}

		holder, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return id.ReportID{}, false, fmt.Errorf("read idempotency key: %w", err)
		}
		existing, err := id.ParseReportID(holder)
		if err != nil {
			return id.ReportID{}, false, fmt.Errorf("decode idempotency holder: %w", err)
		}
		return existing, false, nil
	}
	return id.ReportID{}, false, errors.New("idempotency key churned during reservation")
}

func (s *Redis) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
