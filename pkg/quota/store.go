// Package quota implements windowed request counting against a shared,
// TTL-capable counter store, and the fixed-window limiters built on it.
//
// The store is the only state shared between kernel instances: every
// increment is a single atomic round trip so that concurrent instances
// cannot let more than the configured maximum through.
package quota

import (
	"context"
	"time"
)

// Result is the outcome of one atomic windowed increment.
type Result struct {
	// Allowed is false when the post-increment count exceeds max.
	Allowed bool
	// Count is the post-increment count for the current window.
	Count int64
	// Remaining is max - Count, floored at zero.
	Remaining int64
	// ResetIn is the time left until the current window expires.
	ResetIn time.Duration
}

// Store abstracts the external counter service.
//
// Increment must be atomic: a single round trip that both increments the
// windowed counter and reads it back. Get/Set/Delete provide plain
// TTL-capable key-value access for cooldown flags and replay markers.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, max int64) (Result, error)

	// Get returns the value for key and whether it was present. Expired
	// entries are reported as absent. Counter keys read back as their
	// decimal count, matching Redis GET on an INCR key.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
