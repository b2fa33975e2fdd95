package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prompteval/prompteval/internal/logger"
)

// Disk persists entries as one JSON file per key under a cache directory,
// so cached responses survive across eval runs.
type Disk struct {
	dir string
	ttl time.Duration
	mu  sync.Mutex
}

// NewDisk creates the cache directory if needed.
func NewDisk(dir string, ttl time.Duration) (*Disk, error) {
	if dir == "" {
		dir = DefaultOptions().Dir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return &Disk{dir: dir, ttl: ttl}, nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}

// Get reads the entry file for key. Corrupt or expired files are removed
// and treated as misses.
func (d *Disk) Get(key string) (*Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		lg := logger.Get()
		lg.Warn().Str("key", key).Err(err).Msg("removing corrupt cache entry")
		os.Remove(d.path(key))
		return nil, false
	}

	if expired(&e, d.ttl) {
		os.Remove(d.path(key))
		return nil, false
	}
	return &e, true
}

// Set writes the entry file via a temp-file rename so concurrent readers
// never see partial writes.
func (d *Disk) Set(key string, e *Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		lg := logger.Get()
		lg.Warn().Str("key", key).Err(err).Msg("failed to encode cache entry")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tmp, err := os.CreateTemp(d.dir, "entry-*.tmp")
	if err != nil {
		lg := logger.Get()
		lg.Warn().Err(err).Msg("failed to create cache temp file")
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return
	}
	tmp.Close()

	if err := os.Rename(tmp.Name(), d.path(key)); err != nil {
		os.Remove(tmp.Name())
		lg := logger.Get()
		lg.Warn().Str("key", key).Err(err).Msg("failed to persist cache entry")
	}
}

// Close is a no-op for the disk backend.
func (d *Disk) Close() error { return nil }

// Clear removes every entry file in the cache directory.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory %s: %w", d.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, entry.Name())); err != nil {
			return fmt.Errorf("removing cache entry %s: %w", entry.Name(), err)
		}
	}
	return nil
}
