package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSet_RoundTrip(t *testing.T) {
	t.Parallel()
	c := New[string](0, false)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", "one")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "one", v)

	// Overwrite replaces, never duplicates.
	c.Set("a", "two")
	v, _ = c.Get("a")
	assert.Equal(t, "two", v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_LRU_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()
	c := New[int](2, true)

	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok, "least-recently-used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_FIFO_EvictsOldestInserted(t *testing.T) {
	t.Parallel()
	c := New[int](2, false)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // access order must not matter in FIFO mode
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest inserted entry should be evicted")
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestCache_Bounded_EvictionCountMatchesOverflow(t *testing.T) {
	t.Parallel()
	const maxSize, inserts = 10, 25
	c := New[int](maxSize, true)

	for i := 0; i < inserts; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	stats := c.Stats()
	assert.Equal(t, maxSize, stats.Size)
	assert.Equal(t, int64(inserts-maxSize), stats.Evictions)
}

func TestCache_Stats_HitRate(t *testing.T) {
	t.Parallel()
	c := New[int](0, false)
	c.Set("a", 1)

	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestCache_Delete_DoesNotCountAsEviction(t *testing.T) {
	t.Parallel()
	c := New[int](5, true)
	c.Set("a", 1)

	c.Delete("a")

	stats := c.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Zero(t, stats.Evictions, "explicit deletes are not evictions")

	// Deleting a missing key is a no-op.
	c.Delete("missing")
	assert.Zero(t, c.Stats().Evictions)
}

func TestCache_Clear_ResetsEntriesAndCounters(t *testing.T) {
	t.Parallel()
	c := New[int](0, true)
	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")

	c.Clear()

	assert.Equal(t, 0, c.Len())
	stats := c.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.Evictions)
}

func TestCache_Keys_ReflectsCurrentEntries(t *testing.T) {
	t.Parallel()
	c := New[int](0, false)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")

	assert.ElementsMatch(t, []string{"b"}, c.Keys())
}
