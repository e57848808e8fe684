package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps fixed-window counters in process memory. Entries are
// replaced in place once their window elapses and are otherwise never
// removed, which is fine for the small keyspace of login throttling.
type MemoryStore struct {
	entries sync.Map // key (string) -> *memoryEntry

	// ability to inject the clock (for unit testing)
	NowFunc func() time.Time
}

type memoryEntry struct {
	mu      sync.Mutex
	count   int64
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		NowFunc: time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.NowFunc()

	val, _ := s.entries.LoadOrStore(key, &memoryEntry{})
	entry := val.(*memoryEntry)

	// per-entry lock only: unrelated keys never contend
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !now.Before(entry.resetAt) {
		entry.count = 1
		entry.resetAt = now.Add(window)
		return entry.count, entry.resetAt, nil
	}

	entry.count++
	return entry.count, entry.resetAt, nil
}
