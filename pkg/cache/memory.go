package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Memory is a size-bounded in-process cache.
type Memory struct {
	lru *lru.Cache
	ttl time.Duration
}

// NewMemory creates a memory cache holding at most maxEntries responses.
func NewMemory(maxEntries int, ttl time.Duration) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	l, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: l, ttl: ttl}, nil
}

// Get returns the entry for key if present and fresh.
func (m *Memory) Get(key string) (*Entry, bool) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(*Entry)
	if expired(e, m.ttl) {
		m.lru.Remove(key)
		return nil, false
	}
	return e, true
}

// Set stores the entry, evicting the least recently used one if full.
func (m *Memory) Set(key string, e *Entry) {
	m.lru.Add(key, e)
}

// Close is a no-op for the memory backend.
func (m *Memory) Close() error { return nil }
