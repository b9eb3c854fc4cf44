package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/respcache/cache"
	"github.com/briangreenhill/respcache/memcache"
)

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newDiskCache(t *testing.T, base string) *cache.DiskCache {
	t.Helper()
	c, err := cache.New(cache.WithBaseDir(base), cache.WithSubdir("cache"), cache.WithMaxSize(1<<20))
	require.NoError(t, err)
	return c
}

func TestGetServedFromMemoryOnRepeat(t *testing.T) {
	srv, hits := newTestServer(t, http.StatusOK, `{"ok":true}`)

	c := New(WithMemoryCache(memcache.New(10, 0)))

	first, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, first.Response.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(first.Body))

	second, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, first.Body, second.Body)
	require.Equal(t, int64(1), hits.Load())
}

func TestGetFallsBackToDiskTier(t *testing.T) {
	srv, hits := newTestServer(t, http.StatusOK, `{"page":1}`)
	base := t.TempDir()

	warm := New(WithDiskCache(newDiskCache(t, base)))
	_, err := warm.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, int64(1), hits.Load())

	// A fresh client with a cold memory tier over the same disk root
	// must not hit the network again.
	cold := New(WithDiskCache(newDiskCache(t, base)), WithMemoryCache(memcache.New(10, 0)))
	e, err := cold.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.JSONEq(t, `{"page":1}`, string(e.Body))
	require.Equal(t, int64(1), hits.Load())
}

func TestDiskHitPromotedToMemory(t *testing.T) {
	srv, hits := newTestServer(t, http.StatusOK, `{}`)
	base := t.TempDir()

	warm := New(WithDiskCache(newDiskCache(t, base)))
	_, err := warm.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	mem := memcache.New(10, 0)
	c := New(WithDiskCache(newDiskCache(t, base)), WithMemoryCache(mem))
	_, err = c.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	_, ok := mem.Get(srv.URL)
	require.True(t, ok)
	require.Equal(t, int64(1), hits.Load())
}

func TestNon200NotCached(t *testing.T) {
	srv, hits := newTestServer(t, http.StatusInternalServerError, `boom`)

	c := New(WithMemoryCache(memcache.New(10, 0)), WithDiskCache(newDiskCache(t, t.TempDir())))

	e, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, e.Response.StatusCode)

	_, err = c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, int64(2), hits.Load())
}

func TestGetWithoutCachesGoesToNetwork(t *testing.T) {
	srv, hits := newTestServer(t, http.StatusOK, `{}`)

	c := New()
	_, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, int64(2), hits.Load())
}

func TestGetInvalidURL(t *testing.T) {
	c := New()
	_, err := c.Get(context.Background(), "http://\x7f invalid")
	require.Error(t, err)
}
