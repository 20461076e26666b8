package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/archive"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/tile"
)

func TestRelayFetchSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		rw.Header().Set("Content-Type", "image/png")
		rw.Write([]byte("tile bytes"))
	}))
	defer srv.Close()

	r := NewRelay(srv.Client(), srv.URL+"/tiles/{name}/{z}/{x}/{y}", "terrain", nil, nil)

	result, err := r.Fetch(context.Background(), tile.Native{Level: 10, Col: 5, Row: 3})
	require.NoError(t, err)
	require.NotNil(t, result.Payload)
	assert.Equal(t, "/tiles/terrain/10/5/3", gotPath)
	assert.Equal(t, []byte("tile bytes"), result.Payload.Body)
	// relayed payloads are opaque regardless of the upstream header
	assert.Equal(t, "application/octet-stream", result.Payload.ContentType)
	assert.False(t, result.CacheHit)
}

func TestRelayFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := NewRelay(srv.Client(), srv.URL+"/tiles/{name}/{z}/{x}/{y}", "terrain", nil, nil)

	result, err := r.Fetch(context.Background(), tile.Native{Level: 4, Col: 1, Row: 2})
	require.NoError(t, err)
	assert.True(t, result.NotFound)
}

func TestRelayFetchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		http.Error(rw, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRelay(srv.Client(), srv.URL+"/tiles/{name}/{z}/{x}/{y}", "terrain", nil, nil)

	_, err := r.Fetch(context.Background(), tile.Native{Level: 4, Col: 1, Row: 2})
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRelayFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Write([]byte("too late"))
	}))
	defer srv.Close()

	r := NewRelay(srv.Client(), srv.URL+"/tiles/{name}/{z}/{x}/{y}", "terrain", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := r.Fetch(ctx, tile.Native{Level: 4, Col: 1, Row: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key], nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func TestRelayFetchCached(t *testing.T) {
	var upstreamHits int
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		upstreamHits++
		rw.Write([]byte("tile bytes"))
	}))
	defer srv.Close()

	r := NewRelay(srv.Client(), srv.URL+"/tiles/{name}/{z}/{x}/{y}", "terrain", nil, newMapCache())

	first, err := r.Fetch(context.Background(), tile.Native{Level: 10, Col: 5, Row: 3})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := r.Fetch(context.Background(), tile.Native{Level: 10, Col: 5, Row: 3})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, []byte("tile bytes"), second.Payload.Body)
	assert.Equal(t, 1, upstreamHits)
}

type fakeArchiveStore struct {
	tiles map[tile.Native][]byte
}

func (s *fakeArchiveStore) Info(string) (*archive.Info, error) {
	return nil, nil
}

func (s *fakeArchiveStore) ReadTile(_ string, addr tile.Native) (*archive.TileData, error) {
	body, ok := s.tiles[addr]
	if !ok {
		return nil, nil
	}
	return &archive.TileData{Body: body, ContentType: "application/octet-stream"}, nil
}

func (s *fakeArchiveStore) HealthCheck() error {
	return nil
}

func TestDirectFetch(t *testing.T) {
	native := tile.Native{Level: 10, Col: 5, Row: 3}
	d := NewDirect(&fakeArchiveStore{
		tiles: map[tile.Native][]byte{native: []byte("direct bytes")},
	}, "terrain")

	result, err := d.Fetch(context.Background(), native)
	require.NoError(t, err)
	require.NotNil(t, result.Payload)
	assert.Equal(t, []byte("direct bytes"), result.Payload.Body)
	assert.Equal(t, "application/octet-stream", result.Payload.ContentType)

	miss, err := d.Fetch(context.Background(), tile.Native{Level: 10, Col: 6, Row: 3})
	require.NoError(t, err)
	assert.True(t, miss.NotFound)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, []byte) error {
	return errors.New("cache down")
}

func TestRelayFetchCacheError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Write([]byte("tile bytes"))
	}))
	defer srv.Close()

	r := NewRelay(srv.Client(), srv.URL+"/tiles/{name}/{z}/{x}/{y}", "terrain", nil, failingCache{})

	// a broken cache is a miss plus a bookkeeping flag, never a failure
	result, err := r.Fetch(context.Background(), tile.Native{Level: 10, Col: 5, Row: 3})
	require.NoError(t, err)
	require.NotNil(t, result.Payload)
	assert.Equal(t, []byte("tile bytes"), result.Payload.Body)
	assert.False(t, result.CacheHit)
	assert.True(t, result.CacheLookupError)
}
