// Package client is the HTTP layer over the response cache tiers: a GET
// is answered from the in-memory tier, then the disk tier, then the
// network, and successful network responses are written back to both.
// Cache faults never surface to callers; the client always falls
// through to the network.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/respcache/cache"
)

// DiskCache is the disk tier consumed by the client. Implemented by
// *cache.DiskCache.
type DiskCache interface {
	Store(requestURL string, e *cache.Entry) bool
	Load(requestURL string) *cache.Entry
}

// MemoryCache is the in-memory tier. Implemented by *memcache.Cache.
type MemoryCache interface {
	Get(url string) (*cache.Entry, bool)
	Set(url string, e *cache.Entry)
}

type Client struct {
	http *http.Client
	mem  MemoryCache // optional; nil means no memory tier
	disk DiskCache   // optional; nil means no disk tier
	log  zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithMemoryCache(m MemoryCache) Option {
	return func(c *Client) { c.mem = m }
}

func WithDiskCache(d DiskCache) Option {
	return func(c *Client) { c.disk = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(opts ...Option) *Client {
	c := &Client{
		http: http.DefaultClient,
		log:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get fetches rawURL, preferring the memory tier, then disk, then the
// network. Only 200 responses are cached; other statuses are returned
// to the caller without being stored.
func (c *Client) Get(ctx context.Context, rawURL string) (*cache.Entry, error) {
	if c.mem != nil {
		if e, ok := c.mem.Get(rawURL); ok {
			return e, nil
		}
	}
	if c.disk != nil {
		if e := c.disk.Load(rawURL); e != nil {
			// Promote disk hits so the next lookup is memory-only.
			if c.mem != nil {
				c.mem.Set(rawURL, e)
			}
			return e, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", rawURL, err)
	}

	e := &cache.Entry{
		Response: cache.Response{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
		},
		Body: body,
	}

	if resp.StatusCode == http.StatusOK {
		if c.mem != nil {
			c.mem.Set(rawURL, e)
		}
		if c.disk != nil && !c.disk.Store(rawURL, e) {
			c.log.Debug().Str("url", rawURL).Msg("response not written to disk cache")
		}
	}
	return e, nil
}
