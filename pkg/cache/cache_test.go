package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCache_TTL(t *testing.T) {
	c := New[string](time.Minute)
	defer c.Stop()

	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("room", "active")
	v, ok := c.Get("room")
	require.True(t, ok)
	assert.Equal(t, "active", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("room")
	assert.False(t, ok)

	c.Invalidate("")
	assert.Equal(t, 0, c.Size())
}

func TestCache_GetOrSet(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Stop()

	calls := 0
	fallback := func(context.Context) (int, error) {
		calls++
		return 7, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrSet(context.Background(), "k", fallback)
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	}
	assert.Equal(t, 1, calls)

	_, err := c.GetOrSet(context.Background(), "bad", func(context.Context) (int, error) {
		return 0, errors.New("lookup failed")
	})
	assert.Error(t, err)
	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := New[bool](time.Minute)
	defer c.Stop()

	c.Set("status:a", true)
	c.Set("status:b", true)
	c.Set("other", true)

	c.Invalidate("status:")
	assert.Equal(t, 1, c.Size())

	c.Delete("other")
	assert.Equal(t, 0, c.Size())
	c.Stop()
}
