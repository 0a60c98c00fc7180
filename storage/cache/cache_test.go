package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemCache()

	_, ok, err := c.Get(ctx, "session:ABC123")
	require.NoError(t, err)
	assert.False(t, ok, "a miss is not an error")

	require.NoError(t, c.Set(ctx, "session:ABC123", []byte("payload"), time.Minute))
	val, ok, err := c.Get(ctx, "session:ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), val)

	require.NoError(t, c.Delete(ctx, "session:ABC123"))
	_, ok, err = c.Get(ctx, "session:ABC123")
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting a missing key is a no-op
	assert.NoError(t, c.Delete(ctx, "session:ABC123"))
}

func TestMemCache_ttl(t *testing.T) {
	ctx := context.Background()
	c := NewMemCache()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, c.Set(ctx, "forever", []byte("y"), 0))

	time.Sleep(20 * time.Millisecond)

	_, ok, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok, "expired entries read as misses")

	_, ok, err = c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok, "zero ttl never expires")
}
