package tiles

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_BasicGetPut(t *testing.T) {
	cache := NewCache(100, time.Hour)

	// Miss on empty cache.
	assert.Nil(t, cache.Get("OpenStreetMap", Coord{Z: 10, X: 512, Y: 256}))

	data := []byte("tile-bytes")
	cache.Put("OpenStreetMap", Coord{Z: 10, X: 512, Y: 256}, data)
	assert.Equal(t, data, cache.Get("OpenStreetMap", Coord{Z: 10, X: 512, Y: 256}))

	// Different coordinate is still a miss.
	assert.Nil(t, cache.Get("OpenStreetMap", Coord{Z: 10, X: 512, Y: 257}))

	// Same coordinate under another basemap is a miss.
	assert.Nil(t, cache.Get("OpenTopoMap", Coord{Z: 10, X: 512, Y: 256}))
}

func TestCache_TTLExpiration(t *testing.T) {
	cache := NewCache(100, 50*time.Millisecond)

	cache.Put("osm", Coord{Z: 1, X: 0, Y: 0}, []byte("tile"))
	assert.NotNil(t, cache.Get("osm", Coord{Z: 1, X: 0, Y: 0}))

	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, cache.Get("osm", Coord{Z: 1, X: 0, Y: 0}))

	// Expired entry is removed entirely.
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestCache_LRUEviction(t *testing.T) {
	cache := NewCache(3, time.Hour)

	cache.Put("a", Coord{}, []byte("1"))
	cache.Put("b", Coord{}, []byte("2"))
	cache.Put("c", Coord{}, []byte("3"))

	// Cache is full. Adding a fourth evicts "a" (oldest).
	cache.Put("d", Coord{}, []byte("4"))

	assert.Nil(t, cache.Get("a", Coord{}))
	assert.NotNil(t, cache.Get("b", Coord{}))
	assert.NotNil(t, cache.Get("c", Coord{}))
	assert.NotNil(t, cache.Get("d", Coord{}))
}

func TestCache_LRUEviction_AccessOrder(t *testing.T) {
	cache := NewCache(3, time.Hour)

	cache.Put("a", Coord{}, []byte("1"))
	cache.Put("b", Coord{}, []byte("2"))
	cache.Put("c", Coord{}, []byte("3"))

	// Touch "a" so "b" becomes the eviction candidate.
	cache.Get("a", Coord{})
	cache.Put("d", Coord{}, []byte("4"))

	assert.NotNil(t, cache.Get("a", Coord{}))
	assert.Nil(t, cache.Get("b", Coord{}))
	assert.NotNil(t, cache.Get("c", Coord{}))
	assert.NotNil(t, cache.Get("d", Coord{}))
}

func TestCache_UpdateExistingKey(t *testing.T) {
	cache := NewCache(100, time.Hour)

	cache.Put("a", Coord{}, []byte("old"))
	cache.Put("a", Coord{}, []byte("new"))

	assert.Equal(t, []byte("new"), cache.Get("a", Coord{}))
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestCache_Invalidate(t *testing.T) {
	cache := NewCache(100, time.Hour)

	cache.Put("osm", Coord{Z: 1}, []byte("a"))
	cache.Put("osm", Coord{Z: 2}, []byte("b"))
	cache.Put("topo", Coord{Z: 1}, []byte("c"))

	cache.Invalidate("osm")

	assert.Nil(t, cache.Get("osm", Coord{Z: 1}))
	assert.Nil(t, cache.Get("osm", Coord{Z: 2}))
	assert.NotNil(t, cache.Get("topo", Coord{Z: 1}))
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestCache_Stats(t *testing.T) {
	cache := NewCache(100, time.Hour)

	cache.Put("a", Coord{}, []byte("1"))
	cache.Put("b", Coord{}, []byte("2"))

	cache.Get("a", Coord{}) // hit
	cache.Get("b", Coord{}) // hit
	cache.Get("c", Coord{}) // miss

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 100, stats.MaxEntries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	require.InDelta(t, 0.6667, stats.HitRate, 0.01)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache(1000, time.Hour)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cache.Put("osm", Coord{Z: n}, []byte("data"))
			cache.Get("osm", Coord{Z: n})
		}(i)
	}
	wg.Wait()

	stats := cache.Stats()
	assert.LessOrEqual(t, stats.Entries, 1000)
	assert.True(t, stats.Hits+stats.Misses > 0)
}
