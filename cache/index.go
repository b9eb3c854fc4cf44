package cache

import (
	"encoding/json"
	"os"
)

// descriptorName is the fixed filename of the durable index record under
// the cache root. Its field names are part of the on-disk format and
// must stay stable across releases.
const descriptorName = "index.json"

// descriptor is the persisted form of the index.
type descriptor struct {
	CurrentSize   int64    `json:"currentSize"`
	RequestCaches []string `json:"requestCaches"`
}

// index tracks which keys are cached, in insertion/re-insertion order
// (oldest first), plus the aggregate on-disk size of their files.
// It is not safe for concurrent use; DiskCache guards it with its lock.
type index struct {
	size int64
	keys []string
}

func newIndex() *index { return &index{} }

func (ix *index) has(key string) bool {
	for _, k := range ix.keys {
		if k == key {
			return true
		}
	}
	return false
}

// touch marks key as the most recently written entry: its prior position
// (if any) is removed and the key is appended at the end. Reads never
// call touch; only writes reorder the index.
func (ix *index) touch(key string) {
	ix.remove(key)
	ix.keys = append(ix.keys, key)
}

func (ix *index) remove(key string) {
	for i, k := range ix.keys {
		if k == key {
			ix.keys = append(ix.keys[:i], ix.keys[i+1:]...)
			return
		}
	}
}

// popOldest removes and returns the eviction candidate: the first key in
// insertion order.
func (ix *index) popOldest() (string, bool) {
	if len(ix.keys) == 0 {
		return "", false
	}
	key := ix.keys[0]
	ix.keys = ix.keys[1:]
	return key, true
}

// loadIndex reads and parses the descriptor at path. Callers treat any
// error as a cold start, not a failure.
func loadIndex(path string) (*index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d descriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return &index{size: d.CurrentSize, keys: d.RequestCaches}, nil
}

// persist writes the full descriptor to path. The write is atomic so a
// crash mid-persist leaves the previous descriptor intact, never a
// truncated one.
func (ix *index) persist(path string) error {
	d := descriptor{CurrentSize: ix.size, RequestCaches: ix.keys}
	if d.RequestCaches == nil {
		d.RequestCaches = []string{}
	}
	b, err := json.MarshalIndent(&d, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, b)
}
