// Package cache provides response caching for provider calls, keyed by a
// hash of the provider ID and the canonical request JSON.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prompteval/prompteval/pkg/provider"
)

// Entry is a cached provider response.
type Entry struct {
	Response  *provider.Response `json:"response"`
	CreatedAt time.Time          `json:"created_at"`
}

// Cache stores provider responses. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the entry for key, or false if absent or expired.
	Get(key string) (*Entry, bool)

	// Set stores the entry under key.
	Set(key string, e *Entry)

	// Close releases backend resources.
	Close() error
}

// Options selects and configures a cache backend.
type Options struct {
	Enabled    bool          `yaml:"enabled"`
	Backend    string        `yaml:"backend"` // memory, disk, redis, noop
	TTL        time.Duration `yaml:"ttl"`
	Dir        string        `yaml:"dir"`
	RedisURL   string        `yaml:"redis_url"`
	MaxEntries int           `yaml:"max_entries"`
}

// DefaultOptions returns the cache configuration used when none is given:
// a disk cache under .prompteval-cache with a 14-day TTL.
func DefaultOptions() Options {
	return Options{
		Enabled:    true,
		Backend:    "disk",
		TTL:        14 * 24 * time.Hour,
		Dir:        ".prompteval-cache",
		MaxEntries: 10000,
	}
}

// New builds the cache backend described by opts. A disabled cache
// returns the noop backend.
func New(opts Options) (Cache, error) {
	if !opts.Enabled {
		return NewNoop(), nil
	}

	switch opts.Backend {
	case "", "disk":
		return NewDisk(opts.Dir, opts.TTL)
	case "memory":
		return NewMemory(opts.MaxEntries, opts.TTL)
	case "redis":
		return NewRedis(opts.RedisURL, opts.TTL)
	case "noop":
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// Key derives the cache key for a provider request. The request is
// serialized to JSON, so any field that changes the provider call changes
// the key.
func Key(providerID string, req *provider.Request) string {
	h := sha256.New()
	h.Write([]byte(providerID))
	h.Write([]byte{0})
	body, _ := json.Marshal(req)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// expired reports whether the entry is older than ttl (a zero ttl never
// expires).
func expired(e *Entry, ttl time.Duration) bool {
	return ttl > 0 && time.Since(e.CreatedAt) > ttl
}
