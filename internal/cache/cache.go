// Package cache is a time-boxed in-memory store for provider metadata.
// Entries are replaced wholesale on refresh and never mutated in place;
// process restart clears everything.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/streamfront/streamfront/internal/metrics"
)

// Loader fetches the value for a key on miss. A loader error propagates to
// the caller and stores nothing, so a failed fetch cannot poison the cache.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	data     any
	storedAt time.Time
}

// Store is safe for concurrent use. Concurrent misses on the same key are
// collapsed into a single loader call; late arrivals wait for and share the
// in-flight result.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group

	now func() time.Time // test hook
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// GetOrLoad returns the cached value for key when it is younger than ttl,
// otherwise invokes loader, stores the result, and returns it.
func (s *Store) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader Loader) (any, error) {
	if v, ok := s.lookup(key, ttl); ok {
		metrics.CacheHits.WithLabelValues(metrics.ResourceFromKey(key)).Inc()
		return v, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we queued.
		if v, ok := s.lookup(key, ttl); ok {
			return v, nil
		}
		metrics.CacheMisses.WithLabelValues(metrics.ResourceFromKey(key)).Inc()
		data, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.entries[key] = entry{data: data, storedAt: s.now()}
		s.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate removes the entry unconditionally; the next GetOrLoad refetches.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	// Forget any in-flight load too, so an explicit refresh is really fresh.
	s.group.Forget(key)
}

func (s *Store) lookup(key string, ttl time.Duration) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.storedAt) >= ttl {
		return nil, false
	}
	return e.data, true
}
