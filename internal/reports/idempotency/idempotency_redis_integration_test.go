//go:build integration

package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"guardian/internal/reports/idempotency"
	id "guardian/pkg/domain"
	"guardian/pkg/testutil/containers"
)

type RedisSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *idempotency.Redis
}

func TestRedisSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = idempotency.NewRedis(s.redis.Client)
}

func (s *RedisSuite) SetupTest() {
	s.Require().NoError(s.redis.Flush(context.Background()))
}

func (s *RedisSuite) TestReserveReturnsTheFirstHolder() {
	ctx := context.Background()
	first, second := id.NewReportID(), id.NewReportID()
	key := idempotency.Key("content-1", "reporter-1")

	holder, ok, err := s.store.Reserve(ctx, key, first, time.Now(), time.Minute)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(first, holder)

	holder, ok, err = s.store.Reserve(ctx, key, second, time.Now(), time.Minute)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(first, holder)

	s.Require().NoError(s.store.Release(ctx, key))
	_, ok, err = s.store.Reserve(ctx, key, second, time.Now(), time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}
