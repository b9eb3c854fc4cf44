package memcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/respcache/cache"
)

func entry(url, body string) *cache.Entry {
	return &cache.Entry{
		Response: cache.Response{URL: url, StatusCode: 200},
		Body:     []byte(body),
	}
}

func TestGetSet(t *testing.T) {
	c := New(10, 0)
	c.Set("http://a", entry("http://a", "A"))

	got, ok := c.Get("http://a")
	require.True(t, ok)
	require.Equal(t, []byte("A"), got.Body)

	_, ok = c.Get("http://missing")
	require.False(t, ok)
}

func TestLRUEviction(t *testing.T) {
	c := New(2, 0)
	c.Set("http://a", entry("http://a", "A"))
	c.Set("http://b", entry("http://b", "B"))

	// Touch a so b becomes least recently used.
	_, ok := c.Get("http://a")
	require.True(t, ok)

	c.Set("http://c", entry("http://c", "C"))

	_, ok = c.Get("http://b")
	require.False(t, ok)
	_, ok = c.Get("http://a")
	require.True(t, ok)
	_, ok = c.Get("http://c")
	require.True(t, ok)
	require.Equal(t, 2, c.Len())
}

func TestSetReplacesExisting(t *testing.T) {
	c := New(10, 0)
	c.Set("http://a", entry("http://a", "old"))
	c.Set("http://a", entry("http://a", "new"))

	got, ok := c.Get("http://a")
	require.True(t, ok)
	require.Equal(t, []byte("new"), got.Body)
	require.Equal(t, 1, c.Len())
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, 30*time.Millisecond)
	c.Set("http://a", entry("http://a", "A"))

	_, ok := c.Get("http://a")
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)

	_, ok = c.Get("http://a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestRemoveAndPurge(t *testing.T) {
	c := New(10, 0)
	c.Set("http://a", entry("http://a", "A"))
	c.Set("http://b", entry("http://b", "B"))

	c.Remove("http://a")
	_, ok := c.Get("http://a")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	c.Purge()
	require.Equal(t, 0, c.Len())
	_, ok = c.Get("http://b")
	require.False(t, ok)
}

func TestSetNilEntryIgnored(t *testing.T) {
	c := New(10, 0)
	c.Set("http://a", nil)
	require.Equal(t, 0, c.Len())
}
