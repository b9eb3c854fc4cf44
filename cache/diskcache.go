package cache

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Defaults for construction. Sizes are bytes.
const (
	DefaultSubdir  = ".respcache"
	DefaultMaxSize = 50 << 20
)

// DiskCache is the disk tier of the response cache. One instance owns
// one root directory exclusively; constructing two instances over the
// same root concurrently is a caller error, since exclusion is
// in-process only (no filesystem locking).
//
// All methods are safe for concurrent use. The cache is advisory: a
// concurrent Load of a key being evicted may miss, and that is within
// contract.
type DiskCache struct {
	root    string
	maxSize int64
	store   storage
	split   bool
	log     zerolog.Logger

	// mu guards idx and every mutating filesystem operation, so that no
	// two mutations interleave their read-modify-write of the index.
	mu  sync.Mutex
	idx *index
}

type settings struct {
	baseDir string
	subdir  string
	maxSize int64
	codec   Codec
	split   bool
	log     zerolog.Logger
}

// Option configures a DiskCache at construction.
type Option func(*settings)

// WithBaseDir overrides the platform base directory the cache root is
// resolved under. Defaults to the current user's home directory.
func WithBaseDir(dir string) Option {
	return func(s *settings) { s.baseDir = dir }
}

// WithSubdir sets the directory name joined under the base directory.
func WithSubdir(name string) Option {
	return func(s *settings) { s.subdir = name }
}

// WithMaxSize sets the capacity in bytes. Values <= 0 keep the default.
func WithMaxSize(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithCodec replaces the default JSON codec.
func WithCodec(c Codec) Option {
	return func(s *settings) { s.codec = c }
}

// WithSplitStorage selects the degraded mode that stores each entry as
// three sibling files instead of one composite file. Callers pass the
// capability decision in here once; it is never re-checked per call.
func WithSplitStorage() Option {
	return func(s *settings) { s.split = true }
}

// WithLogger sets the diagnostic logger. Defaults to a no-op logger;
// the cache never logs misses, only absorbed faults.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// New constructs a cache rooted at baseDir/subdir, creating the
// directory if absent. An existing index descriptor under the root is
// loaded; a missing or unreadable descriptor degrades to a cold cache
// and a fresh descriptor is written, never an error.
func New(opts ...Option) (*DiskCache, error) {
	s := settings{
		subdir:  DefaultSubdir,
		maxSize: DefaultMaxSize,
		codec:   JSONCodec{},
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(&s)
	}

	if s.baseDir == "" {
		usr, err := user.Current()
		if err != nil {
			return nil, err
		}
		s.baseDir = usr.HomeDir
	}
	root := filepath.Join(s.baseDir, s.subdir)
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}

	var store storage
	if s.split {
		store = &splitStorage{dir: root, codec: s.codec, log: s.log}
	} else {
		store = &wholeStorage{dir: root, codec: s.codec, log: s.log}
	}

	c := &DiskCache{
		root:    root,
		maxSize: s.maxSize,
		store:   store,
		split:   s.split,
		log:     s.log,
	}

	idx, err := loadIndex(c.descriptorPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Err(err).Str("root", root).Msg("cache descriptor unreadable, starting cold")
		}
		c.idx = newIndex()
		c.persistLocked()
	} else {
		c.idx = idx
	}
	return c, nil
}

// Root returns the cache's root directory.
func (c *DiskCache) Root() string { return c.root }

func (c *DiskCache) descriptorPath() string {
	return filepath.Join(c.root, descriptorName)
}

// Store caches e under the key derived from requestURL and reports
// whether the entry was written. Entries whose serialized size reaches
// the configured capacity are rejected without touching the index.
// Re-storing an existing URL overwrites its files and moves its key to
// the most-recent position. If the write pushes the cache over
// capacity, oldest entries are evicted until it fits. Racing stores for
// the same URL are last-write-wins.
func (c *DiskCache) Store(requestURL string, e *Entry) bool {
	if e == nil {
		return false
	}
	key := KeyForURL(requestURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-store overwrites the old files; account for their size before
	// they disappear so currentSize stays equal to the sum on disk.
	var prior int64
	if c.idx.has(key) {
		if n, ok := c.store.diskSize(key); ok {
			prior = n
		}
	}

	n, err := c.store.write(key, e, c.maxSize)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			c.log.Debug().Str("url", requestURL).Int64("max", c.maxSize).
				Msg("entry too large for cache, not stored")
		} else {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return false
	}

	// Index mutations only after the file write succeeded, so a failed
	// write leaves the index untouched.
	c.idx.touch(key)
	c.idx.size += n - prior
	c.evictLocked()
	c.persistLocked()
	return true
}

// Load returns the cached entry for requestURL, or nil on a miss. A
// miss is normal and never logged. The whole-file path reads without
// the lock; the split path holds it because its three dependent reads
// must observe a consistent index relative to concurrent eviction.
func (c *DiskCache) Load(requestURL string) *Entry {
	key := KeyForURL(requestURL)
	if c.split {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	e, ok := c.store.read(key)
	if !ok {
		return nil
	}
	return e
}

// HasCache reports whether the in-memory index has an entry for
// requestURL. It never touches the filesystem; under concurrent
// eviction it may briefly disagree with Load, which callers needing
// strong consistency should prefer.
func (c *DiskCache) HasCache(requestURL string) bool {
	key := KeyForURL(requestURL)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.has(key)
}

// HasOnDisk reports whether the file(s) for requestURL exist,
// independent of the index.
func (c *DiskCache) HasOnDisk(requestURL string) bool {
	return c.store.exists(KeyForURL(requestURL))
}

// CurrentSize returns the aggregate byte size the index accounts for.
func (c *DiskCache) CurrentSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.size
}

// Clear removes the entire cache directory, object files and descriptor
// included, and empties the index. Concurrent callers may observe a
// transient miss or a read of data about to be deleted.
func (c *DiskCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.RemoveAll(c.root); err != nil {
		c.log.Warn().Err(err).Str("root", c.root).Msg("failed to clear cache directory")
	}
	c.idx = newIndex()
}

// evictLocked removes oldest entries until the cache fits its capacity.
// Caller holds c.mu.
func (c *DiskCache) evictLocked() {
	for c.idx.size > c.maxSize {
		key, ok := c.idx.popOldest()
		if !ok {
			return
		}
		if n, ok := c.store.diskSize(key); ok {
			c.idx.size -= n
		} else {
			// File vanished out-of-band; drop the key anyway and keep
			// going. The size it claimed cannot be reclaimed here.
			c.log.Warn().Str("key", key).Msg("evicting key whose file is already gone")
		}
		c.store.remove(key)
	}
}

// persistLocked writes the index descriptor. Persist failures are
// absorbed: the in-memory index stays authoritative and the descriptor
// is rewritten on the next mutation. Caller holds c.mu.
func (c *DiskCache) persistLocked() {
	if err := c.idx.persist(c.descriptorPath()); err != nil {
		c.log.Warn().Err(err).Str("root", c.root).Msg("failed to persist cache descriptor")
	}
}
