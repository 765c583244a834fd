package preview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetPut(t *testing.T) {
	cache := NewCache(4, time.Hour)

	_, _, ok := cache.Get("missing")
	assert.False(t, ok)

	cache.Put("a", []byte("frame"), "image/webp")
	data, contentType, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("frame"), data)
	assert.Equal(t, "image/webp", contentType)
}

func TestCacheEvictsOldestFirst(t *testing.T) {
	cache := NewCache(2, time.Hour)
	current := time.Unix(1000, 0)
	cache.now = func() time.Time { return current }

	cache.Put("oldest", []byte("1"), "image/jpeg")
	current = current.Add(time.Second)
	cache.Put("middle", []byte("2"), "image/jpeg")
	current = current.Add(time.Second)

	// Touching the oldest entry must not save it: eviction is by creation
	// time, not access time.
	_, _, ok := cache.Get("oldest")
	require.True(t, ok)

	cache.Put("newest", []byte("3"), "image/jpeg")

	_, _, ok = cache.Get("oldest")
	assert.False(t, ok)
	_, _, ok = cache.Get("middle")
	assert.True(t, ok)
	_, _, ok = cache.Get("newest")
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Len())
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	cache := NewCache(2, time.Hour)
	cache.Put("a", []byte("1"), "image/jpeg")
	cache.Put("b", []byte("2"), "image/jpeg")
	cache.Put("a", []byte("3"), "image/jpeg")

	assert.Equal(t, 2, cache.Len())
	data, _, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("3"), data)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(2, time.Minute)
	current := time.Unix(1000, 0)
	cache.now = func() time.Time { return current }

	cache.Put("a", []byte("1"), "image/jpeg")
	current = current.Add(2 * time.Minute)

	_, _, ok := cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}
