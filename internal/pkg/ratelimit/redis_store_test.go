package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRateLimiter(client)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "user-1", "checkout", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	ok, err := rl.Allow(ctx, "user-1", "checkout", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "user-2", "checkout", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "limits are per user")

	mr.FastForward(2 * time.Minute)
	ok, err = rl.Allow(ctx, "user-1", "checkout", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "window resets after expiry")
}
