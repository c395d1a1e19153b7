package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	newCache := func(maxItems int) *Cache {
		c := New(Config{
			DefaultTTL:      time.Minute,
			CleanupInterval: time.Hour,
			MaxItems:        maxItems,
		})
		t.Cleanup(c.Close)
		return c
	}

	t.Run("SetAndGet", func(t *testing.T) {
		c := newCache(0)
		c.Set("a", 1)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)
	})

	t.Run("MissingKey", func(t *testing.T) {
		c := newCache(0)
		_, ok := c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		c := newCache(0)
		c.SetWithTTL("a", 1, -time.Second)

		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		c := newCache(0)
		c.Set("a", 1)
		c.Delete("a")

		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("Clear", func(t *testing.T) {
		c := newCache(0)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Clear()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("MaxItemsEviction", func(t *testing.T) {
		c := newCache(3)
		for i := 0; i < 5; i++ {
			c.Set(fmt.Sprintf("key-%d", i), i)
		}
		assert.LessOrEqual(t, c.Len(), 3)
	})

	t.Run("OverwriteDoesNotEvict", func(t *testing.T) {
		c := newCache(2)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Set("a", 3)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 3, v)
		_, ok = c.Get("b")
		assert.True(t, ok)
	})
}
