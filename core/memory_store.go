package core

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultMemoryPruneInterval = time.Minute

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	// position in the write order, front is the oldest write
	order *list.Element
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type MemoryStoreOption func(*MemoryStore)

func WithMemoryStoreClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMemoryStoreMaxEntries(maxEntries int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if maxEntries > 0 {
			s.maxEntries = maxEntries
		}
	}
}

// WithMemoryStorePruneInterval sets how often a write sweeps expired entries.
func WithMemoryStorePruneInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.pruneInterval = interval
		}
	}
}

// MemoryStore is the in-process KVStore. Expired entries are dropped lazily
// on read and swept by the first write after each prune interval. Once
// maxEntries is exceeded the oldest writes are evicted first.
type MemoryStore struct {
	mu            sync.Mutex
	maxEntries    int
	pruneInterval time.Duration
	lastPruneAt   time.Time
	now           func() time.Time
	entries       map[string]memoryEntry
	order         *list.List
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	store := &MemoryStore{
		maxEntries:    defaultMaxStoreEntries,
		pruneInterval: defaultMemoryPruneInterval,
		now:           time.Now,
		entries:       map[string]memoryEntry{},
		order:         list.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return fmt.Errorf("core: memory store is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: store key is required")
	}
	now := s.now().UTC()
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok {
		s.order.MoveToBack(existing.order)
		entry.order = existing.order
	} else {
		entry.order = s.order.PushBack(key)
	}
	s.entries[key] = entry

	if now.Sub(s.lastPruneAt) >= s.pruneInterval {
		s.pruneExpiredLocked(now)
	}
	s.enforceMaxEntriesLocked()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("core: memory store is nil")
	}
	key = strings.TrimSpace(key)
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.expired(now) {
		s.removeLocked(key, entry)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (s *MemoryStore) Take(_ context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("core: memory store is nil")
	}
	key = strings.TrimSpace(key)
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	s.removeLocked(key, entry)
	if entry.expired(now) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: memory store is nil")
	}
	key = strings.TrimSpace(key)
	s.mu.Lock()
	if entry, ok := s.entries[key]; ok {
		s.removeLocked(key, entry)
	}
	s.mu.Unlock()
	return nil
}

// Prune removes every expired entry and reports how many were dropped.
func (s *MemoryStore) Prune() int {
	if s == nil {
		return 0
	}
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneExpiredLocked(now)
}

func (s *MemoryStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor prunes on a ticker until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if s == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Prune()
			}
		}
	}()
}

func (s *MemoryStore) removeLocked(key string, entry memoryEntry) {
	s.order.Remove(entry.order)
	delete(s.entries, key)
}

func (s *MemoryStore) pruneExpiredLocked(now time.Time) int {
	s.lastPruneAt = now
	removed := 0
	for key, entry := range s.entries {
		if entry.expired(now) {
			s.removeLocked(key, entry)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) enforceMaxEntriesLocked() {
	if s.maxEntries <= 0 {
		return
	}
	for len(s.entries) > s.maxEntries {
		oldest := s.order.Front()
		if oldest == nil {
			return
		}
		key := oldest.Value.(string)
		s.removeLocked(key, s.entries[key])
	}
}
