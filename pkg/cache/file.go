package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/barsheet/pkg/observability"
)

const (
	dataExt = ".bin"
	metaExt = ".json"
)

// FileCache stores each entry as a raw data file plus a small JSON
// metadata file, fanned out into subdirectories by key hash.
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache creates a file-based cache in dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

type entryMeta struct {
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Get implements Cache. Corrupt, truncated or expired entries are removed
// and reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	base := c.base(key)
	raw, err := os.ReadFile(base + metaExt)
	if errors.Is(err, fs.ErrNotExist) {
		observability.Cache().OnCacheMiss(ctx, key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	var meta entryMeta
	if err := json.Unmarshal(raw, &meta); err != nil || meta.Key != key {
		c.remove(base)
		observability.Cache().OnCacheMiss(ctx, key)
		return nil, false, nil
	}
	if !meta.ExpiresAt.IsZero() && c.now().After(meta.ExpiresAt) {
		c.remove(base)
		observability.Cache().OnCacheMiss(ctx, key)
		return nil, false, nil
	}

	data, err := os.ReadFile(base + dataExt)
	if err != nil || len(data) != meta.Size || Hash(data) != meta.Hash {
		c.remove(base)
		observability.Cache().OnCacheMiss(ctx, key)
		return nil, false, nil
	}
	observability.Cache().OnCacheHit(ctx, key)
	return data, true, nil
}

// Set implements Cache. The data file is written before its metadata, so
// a reader never sees metadata for incomplete data.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	meta := entryMeta{Key: key, Size: len(data), Hash: Hash(data)}
	if ttl > 0 {
		meta.ExpiresAt = c.now().Add(ttl)
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	base := c.base(key)
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("create cache subdir: %w", err)
	}
	if err := writeAtomic(base+dataExt, data); err != nil {
		return err
	}
	if err := writeAtomic(base+metaExt, raw); err != nil {
		_ = os.Remove(base + dataExt)
		return err
	}
	observability.Cache().OnCacheSet(ctx, key, len(data))
	return nil
}

// Delete implements Cache.
func (c *FileCache) Delete(_ context.Context, key string) error {
	base := c.base(key)
	var errs []error
	for _, ext := range []string{metaExt, dataExt} {
		if err := os.Remove(base + ext); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Cache.
func (c *FileCache) Close() error { return nil }

// Clear removes every entry and returns how many there were. Empty
// subdirectories are removed as well.
func (c *FileCache) Clear() (int, error) {
	count := 0
	var dirs []string
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == c.dir {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if os.Remove(path) == nil && strings.HasSuffix(path, metaExt) {
			count++
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
	return count, err
}

// base returns the entry path without extension.
func (c *FileCache) base(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(c.dir, hash[:2], hash[2:])
}

func (c *FileCache) remove(base string) {
	_ = os.Remove(base + metaExt)
	_ = os.Remove(base + dataExt)
}

// writeAtomic writes data to a temp file next to path and renames it into
// place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

var _ Cache = (*FileCache)(nil)
