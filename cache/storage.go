package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// errTooLarge rejects an entry whose serialized size reaches the cache
// capacity. It never escapes the package; Store reports it as false.
var errTooLarge = errors.New("entry exceeds cache capacity")

// storage is the on-disk representation of an entry. Two variants exist:
// one file per key, or three sibling files per key for platforms that
// cannot serialize the composite entry in one piece. The variant is
// chosen once at construction; callers of DiskCache never see which one
// is active.
type storage interface {
	// write persists e under key, returning the bytes written. It must
	// reject with errTooLarge before touching any file if the encoded
	// size is limit or more.
	write(key string, e *Entry, limit int64) (int64, error)
	// read loads the entry for key; ok is false on a miss.
	read(key string) (*Entry, bool)
	// remove deletes key's file(s), best effort.
	remove(key string)
	// diskSize reports the total on-disk bytes occupied by key.
	diskSize(key string) (int64, bool)
	// exists reports whether all of key's file(s) are present.
	exists(key string) bool
}

// atomicWrite writes data via a temp file and rename so concurrent
// readers never observe a partial file. The parent directory is created
// if missing, so writes keep working after Clear.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// wholeStorage stores one file per key holding the encoded entry.
type wholeStorage struct {
	dir   string
	codec Codec
	log   zerolog.Logger
}

func (s *wholeStorage) path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *wholeStorage) write(key string, e *Entry, limit int64) (int64, error) {
	b, err := s.codec.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("encode entry: %w", err)
	}
	if int64(len(b)) >= limit {
		return 0, errTooLarge
	}
	if err := atomicWrite(s.path(key), b); err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

func (s *wholeStorage) read(key string) (*Entry, bool) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		// Missing file is a normal miss.
		return nil, false
	}
	var e Entry
	if err := s.codec.Unmarshal(b, &e); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cached file undecodable, treating as miss")
		return nil, false
	}
	return &e, true
}

func (s *wholeStorage) remove(key string) {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to remove cached file")
	}
}

func (s *wholeStorage) diskSize(key string) (int64, bool) {
	fi, err := os.Stat(s.path(key))
	if err != nil {
		return 0, false
	}
	return fi.Size(), true
}

func (s *wholeStorage) exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// splitStorage stores three sibling files per key, one for each piece of
// the entry. Used when the configured codec cannot round-trip the
// composite entry as a single value.
type splitStorage struct {
	dir   string
	codec Codec
	log   zerolog.Logger
}

func (s *splitStorage) paths(key string) [3]string {
	return [3]string{
		filepath.Join(s.dir, key+suffixResponse),
		filepath.Join(s.dir, key+suffixData),
		filepath.Join(s.dir, key+suffixUserInfo),
	}
}

func (s *splitStorage) write(key string, e *Entry, limit int64) (int64, error) {
	resp, err := s.codec.Marshal(&e.Response)
	if err != nil {
		return 0, fmt.Errorf("encode response: %w", err)
	}
	data, err := s.codec.Marshal(e.Body)
	if err != nil {
		return 0, fmt.Errorf("encode body: %w", err)
	}
	info, err := s.codec.Marshal(e.UserInfo)
	if err != nil {
		return 0, fmt.Errorf("encode user info: %w", err)
	}

	total := int64(len(resp) + len(data) + len(info))
	if total >= limit {
		return 0, errTooLarge
	}

	paths := s.paths(key)
	pieces := [3][]byte{resp, data, info}
	for i, p := range paths {
		if err := atomicWrite(p, pieces[i]); err != nil {
			// Leave no partial set of pieces behind.
			for _, q := range paths[:i] {
				_ = os.Remove(q)
			}
			return 0, err
		}
	}
	return total, nil
}

func (s *splitStorage) read(key string) (*Entry, bool) {
	paths := s.paths(key)

	resp, err := os.ReadFile(paths[0])
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(paths[1])
	if err != nil {
		return nil, false
	}
	info, err := os.ReadFile(paths[2])
	if err != nil {
		return nil, false
	}

	var e Entry
	if err := s.codec.Unmarshal(resp, &e.Response); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cached response piece undecodable, treating as miss")
		return nil, false
	}
	if err := s.codec.Unmarshal(data, &e.Body); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cached body piece undecodable, treating as miss")
		return nil, false
	}
	if err := s.codec.Unmarshal(info, &e.UserInfo); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cached user info piece undecodable, treating as miss")
		return nil, false
	}
	return &e, true
}

func (s *splitStorage) remove(key string) {
	for _, p := range s.paths(key) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to remove cached piece")
		}
	}
}

func (s *splitStorage) diskSize(key string) (int64, bool) {
	var total int64
	found := false
	for _, p := range s.paths(key) {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		total += fi.Size()
		found = true
	}
	return total, found
}

func (s *splitStorage) exists(key string) bool {
	for _, p := range s.paths(key) {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
