//go:build integration

package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/verification/models"
	"guardian/internal/verification/registry"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
	"guardian/pkg/testutil/containers"
)

func TestRedisRegistry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	reg := registry.NewRedisRegistry(rc.Client)
	ctx := context.Background()
	now := time.Now()

	entry := registry.Entry{
		SubjectID: id.SubjectID("redis-subject"),
		RequestID: id.NewVerificationID(),
		Method:    models.MethodBiometric,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, reg.Register(ctx, entry))

	got, err := reg.Lookup(ctx, entry.SubjectID, now)
	require.NoError(t, err)
	assert.Equal(t, entry.RequestID, got.RequestID)

	ttl, err := rc.Client.TTL(ctx, "guardian:verified:redis-subject").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute)

	require.NoError(t, reg.Remove(ctx, entry.SubjectID))
	_, err = reg.Lookup(ctx, entry.SubjectID, now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
