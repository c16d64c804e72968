// Package ratelimit implements a fixed-window request counter keyed by client.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/loqalabs/loqa-interpret/internal/config"
)

// Store counts requests per key. Increment records a request at now and
// reports whether it is allowed.
type Store interface {
	Increment(key string, now time.Time) bool
}

type bucket struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// increment applies the fixed-window rule: a missing or expired bucket is
// reset to one request; otherwise the count grows until it reaches limit.
func (b *bucket) increment(now time.Time, limit int, window time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.windowStart.IsZero() || now.Sub(b.windowStart) > window {
		b.count = 1
		b.windowStart = now
		return true
	}
	if b.count >= limit {
		return false
	}
	b.count++
	return true
}

// MemoryStore keeps one bucket per key forever. Increments for the same key
// are serialized; different keys do not contend beyond the map lookup.
type MemoryStore struct {
	limit   int
	window  time.Duration
	mu      sync.RWMutex
	buckets map[string]*bucket
}

func NewMemoryStore(limit int, window time.Duration) *MemoryStore {
	return &MemoryStore{limit: limit, window: window, buckets: make(map[string]*bucket)}
}

func (s *MemoryStore) Increment(key string, now time.Time) bool {
	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if b, ok = s.buckets[key]; !ok {
			b = &bucket{}
			s.buckets[key] = b
		}
		s.mu.Unlock()
	}
	return b.increment(now, s.limit, s.window)
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}

// LRUStore bounds the number of tracked keys, evicting the least recently
// seen client. An evicted client starts a fresh window on its next request.
type LRUStore struct {
	limit   int
	window  time.Duration
	buckets *lru.Cache[string, *bucket]
}

func NewLRUStore(limit int, window time.Duration, maxKeys int) (*LRUStore, error) {
	cache, err := lru.New[string, *bucket](maxKeys)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRUStore{limit: limit, window: window, buckets: cache}, nil
}

func (s *LRUStore) Increment(key string, now time.Time) bool {
	b, ok := s.buckets.Get(key)
	if !ok {
		fresh := &bucket{}
		prev, found, _ := s.buckets.PeekOrAdd(key, fresh)
		if found {
			b = prev
		} else {
			b = fresh
		}
	}
	return b.increment(now, s.limit, s.window)
}

func (s *LRUStore) Len() int { return s.buckets.Len() }

// NewStore builds the store selected in cfg.
func NewStore(cfg config.RateLimitConfig) (Store, error) {
	window := time.Duration(cfg.WindowMS) * time.Millisecond
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(cfg.Limit, window), nil
	case "lru":
		return NewLRUStore(cfg.Limit, window, cfg.MaxKeys)
	default:
		return nil, fmt.Errorf("unknown rate limit store %q", cfg.Store)
	}
}
