// Package cache is the keyed store of fetched results shared by the
// polling, push, and mutation paths. Staleness follows the
// stale-while-revalidate rule: the last good value stays visible
// until a fresher fetch replaces it.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Entry holds the last fetched value for a key.
type Entry struct {
	Value     any
	FetchedAt time.Time
	Stale     bool
}

// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.RWMutex
	log      *slog.Logger
	entries  map[Key]Entry
	watchers map[Key][]chan struct{}

	// onInvalidate is an optional observability hook.
	onInvalidate func(Key)
}

func NewStore(log *slog.Logger) *Store {
	return &Store{
		log:      log,
		entries:  make(map[Key]Entry),
		watchers: make(map[Key][]chan struct{}),
	}
}

// OnInvalidate registers a hook called on every invalidation, used for
// metrics. Must be set before the store is shared.
func (s *Store) OnInvalidate(fn func(Key)) {
	s.onInvalidate = fn
}

// Read returns the current entry for key. A stale entry is still
// returned: consumers display the last good value while a refresh is
// pending.
func (s *Store) Read(key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Write records a fetched value. Writes must be applied in
// non-decreasing fetch-timestamp order per key: a response older than
// the cached one is discarded, not written. Returns whether the write
// was accepted.
func (s *Store) Write(key Key, value any, fetchedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.entries[key]; ok && current.FetchedAt.After(fetchedAt) {
		s.log.Debug("Discarding outdated snapshot", "key", key,
			"cached", current.FetchedAt, "rejected", fetchedAt)
		return false
	}
	s.entries[key] = Entry{Value: value, FetchedAt: fetchedAt, Stale: false}
	return true
}

// Invalidate marks an entry stale without deleting its value and
// schedules a re-fetch for any currently watching consumer. It is
// idempotent: repeated invalidations before a re-fetch coalesce into
// at most one pending notification per watcher.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.Stale = true
		s.entries[key] = e
	}
	watchers := s.watchers[key]
	s.mu.Unlock()

	if s.onInvalidate != nil {
		s.onInvalidate(key)
	}

	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
			// A notification is already pending, the coming
			// re-fetch covers this invalidation too.
		}
	}
}

// Watch registers a consumer for invalidations of key. The returned
// channel carries at most one pending token.
func (s *Store) Watch(key Key) chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], ch)
	s.mu.Unlock()
	return ch
}

// Unwatch removes a previously registered watcher channel. Completions
// racing an unmount may still hold the channel, so it is not closed.
func (s *Store) Unwatch(key Key, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.watchers[key][:0]
	for _, w := range s.watchers[key] {
		if w != ch {
			remaining = append(remaining, w)
		}
	}
	if len(remaining) == 0 {
		delete(s.watchers, key)
		return
	}
	s.watchers[key] = remaining
}

// Keys returns a snapshot of all currently cached keys.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}
