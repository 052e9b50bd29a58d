package tiles

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HammamiKhaled/geospython/internal/basemap"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu    sync.Mutex
	tiles map[string][]byte
	puts  int
}

func storeKey(name string, z, x, y int) string {
	return fmt.Sprintf("%s/%d/%d/%d", name, z, x, y)
}

func (m *memStore) GetTile(_ context.Context, name string, z, x, y int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiles[storeKey(name, z, x, y)], nil
}

func (m *memStore) PutTile(_ context.Context, name string, z, x, y int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiles == nil {
		m.tiles = make(map[string][]byte)
	}
	m.tiles[storeKey(name, z, x, y)] = data
	m.puts++
	return nil
}

// registerTestBasemap points a basemap name at the test server.
func registerTestBasemap(t *testing.T, name, baseURL string) {
	t.Helper()
	basemap.Register(basemap.Source{
		Name:        name,
		URLTemplate: baseURL + "/{z}/{x}/{y}.png",
		MaxZoom:     19,
	})
}

func TestProxy_FetchUpstreamAndCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("tile:" + r.URL.Path))
	}))
	defer srv.Close()
	registerTestBasemap(t, "proxy-test", srv.URL)

	proxy := NewProxy(NewCache(100, time.Hour), WithUpstreamRate(1000))

	data, ct, err := proxy.Fetch(context.Background(), "proxy-test", Coord{Z: 3, X: 2, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, "tile:/3/2/1.png", string(data))
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, int64(1), hits.Load())

	// Second fetch served from memory.
	data, _, err = proxy.Fetch(context.Background(), "proxy-test", Coord{Z: 3, X: 2, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, "tile:/3/2/1.png", string(data))
	assert.Equal(t, int64(1), hits.Load())
}

func TestProxy_PersistsToStore(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("stored-tile"))
	}))
	defer srv.Close()
	registerTestBasemap(t, "proxy-store-test", srv.URL)

	store := &memStore{}
	proxy := NewProxy(NewCache(100, time.Hour), WithStore(store), WithUpstreamRate(1000))

	_, _, err := proxy.Fetch(context.Background(), "proxy-store-test", Coord{Z: 1, X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, store.puts)

	// A fresh proxy with an empty memory cache hits the store, not upstream.
	proxy2 := NewProxy(NewCache(100, time.Hour), WithStore(store), WithUpstreamRate(1000))
	data, _, err := proxy2.Fetch(context.Background(), "proxy-store-test", Coord{Z: 1, X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, "stored-tile", string(data))
	assert.Equal(t, int64(1), hits.Load())
}

func TestProxy_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	registerTestBasemap(t, "proxy-err-test", srv.URL)

	proxy := NewProxy(NewCache(100, time.Hour), WithUpstreamRate(1000))

	_, _, err := proxy.Fetch(context.Background(), "proxy-err-test", Coord{Z: 1, X: 0, Y: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream returned 500")
}

func TestProxy_UnknownBasemapFallsBack(t *testing.T) {
	// Unknown names resolve to the default basemap; with an unreachable
	// upstream the fetch fails, but resolution itself must not error out
	// before consulting the cache.
	cache := NewCache(100, time.Hour)
	osm, _ := basemap.Resolve("definitely-unknown")
	cache.Put(osm.Name, Coord{Z: 0, X: 0, Y: 0}, []byte("cached-default"))

	proxy := NewProxy(cache, WithUpstreamRate(1000))
	data, _, err := proxy.Fetch(context.Background(), "definitely-unknown", Coord{Z: 0, X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, "cached-default", string(data))
}

func TestSeeder_SeedsBBox(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("seed-tile"))
	}))
	defer srv.Close()
	registerTestBasemap(t, "seed-test", srv.URL)

	store := &memStore{}
	proxy := NewProxy(NewCache(1000, time.Hour), WithStore(store), WithUpstreamRate(10000))
	seeder := NewSeeder(proxy, nil, 4)

	req := SeedRequest{
		Basemap: "seed-test",
		MinLng:  -10, MinLat: 40, MaxLng: 10, MaxLat: 60,
		MinZoom: 0, MaxZoom: 3,
	}
	result, err := seeder.Seed(context.Background(), req)
	require.NoError(t, err)

	expected := CountRange(-10, 40, 10, 60, 0, 3)
	assert.Equal(t, expected, result.Total)
	assert.Equal(t, int64(expected), result.Fetched)
	assert.Equal(t, int64(0), result.Failed)
	assert.Equal(t, int64(expected), hits.Load())
	assert.NotEmpty(t, result.RunID)
}

func TestSeeder_CountsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	registerTestBasemap(t, "seed-fail-test", srv.URL)

	proxy := NewProxy(NewCache(100, time.Hour), WithUpstreamRate(10000))
	seeder := NewSeeder(proxy, nil, 2)

	result, err := seeder.Seed(context.Background(), SeedRequest{
		Basemap: "seed-fail-test",
		MinLng:  -10, MinLat: 40, MaxLng: 10, MaxLat: 60,
		MinZoom: 0, MaxZoom: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Fetched)
	assert.Equal(t, int64(result.Total), result.Failed)
}

func TestSeeder_RejectsInvalidRequests(t *testing.T) {
	proxy := NewProxy(NewCache(10, time.Hour))
	seeder := NewSeeder(proxy, nil, 2)

	_, err := seeder.Seed(context.Background(), SeedRequest{
		MinLng: 10, MinLat: 40, MaxLng: -10, MaxLat: 60,
		MinZoom: 0, MaxZoom: 1,
	})
	assert.Error(t, err)

	_, err = seeder.Seed(context.Background(), SeedRequest{
		MinLng: -10, MinLat: 40, MaxLng: 10, MaxLat: 60,
		MinZoom: 5, MaxZoom: 2,
	})
	assert.Error(t, err)

	// Whole world at deep zoom exceeds the tile cap.
	_, err = seeder.Seed(context.Background(), SeedRequest{
		MinLng: -180, MinLat: -85, MaxLng: 180, MaxLat: 85,
		MinZoom: 0, MaxZoom: 12,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max is")

	// A tiny bbox cannot smuggle in a zoom past the supported range.
	_, err = seeder.Seed(context.Background(), SeedRequest{
		MinLng: 0, MinLat: 0, MaxLng: 0.0001, MaxLat: 0.0001,
		MinZoom: 63, MaxZoom: 63,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zoom")
}

func TestSeeder_RecordsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("t"))
	}))
	defer srv.Close()
	registerTestBasemap(t, "seed-log-test", srv.URL)

	log := &fakeRunLog{}
	proxy := NewProxy(NewCache(100, time.Hour), WithUpstreamRate(10000))
	seeder := NewSeeder(proxy, log, 2)

	result, err := seeder.Seed(context.Background(), SeedRequest{
		Basemap: "seed-log-test",
		MinLng:  -1, MinLat: 50, MaxLng: 1, MaxLat: 52,
		MinZoom: 0, MaxZoom: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, result.RunID, log.startedID)
	assert.Equal(t, result.RunID, log.finishedID)
	assert.Equal(t, result.Fetched, log.fetched)
}

type fakeRunLog struct {
	startedID  string
	finishedID string
	fetched    int64
}

func (f *fakeRunLog) StartSeedRun(_ context.Context, runID, _ string, _ int) error {
	f.startedID = runID
	return nil
}

func (f *fakeRunLog) FinishSeedRun(_ context.Context, runID string, fetched, _ int64) error {
	f.finishedID = runID
	f.fetched = fetched
	return nil
}
