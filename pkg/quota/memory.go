package quota

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-instance
// deployments. It keeps windowed counter buckets and TTL key-value
// entries in separate maps behind one mutex.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	kv      map[string]kvEntry
	now     func() time.Time
}

type bucket struct {
	count   int64
	resetAt time.Time
}

type kvEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		kv:      make(map[string]kvEntry),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Tests use this to step across
// window boundaries without sleeping.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Increment bumps the windowed counter for key and compares it to max.
func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration, max int64) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++

	remaining := max - b.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   b.count <= max,
		Count:     b.count,
		Remaining: remaining,
		ResetIn:   b.resetAt.Sub(now),
	}, nil
}

// Get reads a key-value entry, falling back to a counter bucket so that
// callers can inspect live counts the way Redis GET reads an INCR key.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.kv[key]; ok {
		if e.expiresAt.IsZero() || now.Before(e.expiresAt) {
			return e.value, true, nil
		}
		delete(s.kv, key)
	}
	if b, ok := s.buckets[key]; ok {
		if now.Before(b.resetAt) {
			return strconv.FormatInt(b.count, 10), true, nil
		}
		delete(s.buckets, key)
	}
	return "", false, nil
}

// Set writes a key-value entry with an optional TTL (zero = no expiry).
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := kvEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.kv[key] = e
	return nil
}

// Delete removes a key from both the key-value and counter spaces.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.kv, key)
	delete(s.buckets, key)
	return nil
}
