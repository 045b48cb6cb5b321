package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aibos-platform/action-kernel/pkg/quota"
)

// DefaultReplayWindow is how long two identical events count as one.
const DefaultReplayWindow = 60 * time.Second

// Ledger records event identities and answers whether an id was already
// seen inside the replay window. Seen records the id as a side effect of
// a miss, so check-and-record is one call.
type Ledger interface {
	Seen(ctx context.Context, id string) (bool, error)
}

// MemoryLedger is the per-process ledger. Entries older than the window
// are evicted lazily on each access. In a multi-instance deployment a
// duplicate can slip through on another instance; use StoreLedger when
// cross-instance dedup is required.
type MemoryLedger struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

// NewMemoryLedger creates a ledger with the given replay window
// (DefaultReplayWindow when zero).
func NewMemoryLedger(window time.Duration) *MemoryLedger {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &MemoryLedger{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// SetClock overrides the time source for tests.
func (l *MemoryLedger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Seen reports whether id was recorded within the window, recording it
// if not. Expired entries are swept on every consult.
func (l *MemoryLedger) Seen(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, at := range l.seen {
		if now.Sub(at) > l.window {
			delete(l.seen, k)
		}
	}

	if _, ok := l.seen[id]; ok {
		return true, nil
	}
	l.seen[id] = now
	return false, nil
}

// StoreLedger backs the ledger with the shared quota store, making dedup
// instance-independent: the first increment of the id's counter wins, and
// the entry expires with the replay window's TTL.
type StoreLedger struct {
	store  quota.Store
	window time.Duration
}

// NewStoreLedger creates a shared-store ledger.
func NewStoreLedger(store quota.Store, window time.Duration) *StoreLedger {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &StoreLedger{store: store, window: window}
}

// Seen atomically increments the id's windowed counter; any count beyond
// the first means another publish (on any instance) got there first.
func (l *StoreLedger) Seen(ctx context.Context, id string) (bool, error) {
	res, err := l.store.Increment(ctx, "replay:"+id, l.window, 1)
	if err != nil {
		return false, fmt.Errorf("events: replay ledger: %w", err)
	}
	return res.Count > 1, nil
}
