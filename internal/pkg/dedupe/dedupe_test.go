package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	m := NewMemory(time.Hour, 10)
	m.now = func() time.Time { return now }

	seen, err := m.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, m.Mark(ctx, "evt_1"))
	seen, _ = m.Seen(ctx, "evt_1")
	assert.True(t, seen)

	now = now.Add(2 * time.Hour)
	seen, _ = m.Seen(ctx, "evt_1")
	assert.False(t, seen, "entry should expire after ttl")
}

func TestMemoryBounded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour, 2)

	require.NoError(t, m.Mark(ctx, "a"))
	require.NoError(t, m.Mark(ctx, "b"))
	require.NoError(t, m.Mark(ctx, "c"))

	assert.LessOrEqual(t, len(m.entries), 2)
	seen, _ := m.Seen(ctx, "c")
	assert.True(t, seen)
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedis(client, "webhook:processed:", time.Minute)

	seen, err := r.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, r.Mark(ctx, "evt_1"))
	assert.True(t, mr.Exists("webhook:processed:evt_1"))

	seen, err = r.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(40 * time.Second)
	require.NoError(t, r.Mark(ctx, "evt_1"))
	assert.Equal(t, 20*time.Second, mr.TTL("webhook:processed:evt_1"), "a second mark keeps the first ttl")

	mr.FastForward(2 * time.Minute)
	seen, err = r.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
