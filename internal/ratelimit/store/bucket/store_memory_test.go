package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestInMemoryBucketStore_Allow(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewInMemoryBucketStore(WithClock(c.now))

	for i := range 3 {
		res, err := store.Allow(ctx, "screening:user_1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		c.t = c.t.Add(10 * time.Second)
	}

	res, err := store.Allow(ctx, "screening:user_1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, 30, res.RetryAfter)

	t.Run("other keys are independent", func(t *testing.T) {
		res, err := store.Allow(ctx, "screening:user_2", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		c.t = c.t.Add(31 * time.Second)
		res, err := store.Allow(ctx, "screening:user_1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
	})
}

func TestInMemoryBucketStore_ResetAndSweep(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewInMemoryBucketStore(WithClock(c.now))

	_, err := store.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	res, err := store.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	require.NoError(t, store.Reset(ctx, "a"))
	res, err = store.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, err = store.Allow(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	c.t = c.t.Add(2 * time.Minute)
	assert.Equal(t, 2, store.Sweep())
}
