// Package circuit implements the per-engine failure-rate breaker.
//
// The breaker shares the quota store's counting primitive: errors
// accumulate in a windowed counter, and tripping sets a cooldown flag
// with its own TTL. Two states only — closed (counting) and open
// (cooldown active). There is no half-open probe; once the cooldown
// TTL lapses the engine is closed again and must re-accumulate errors
// from zero before tripping.
package circuit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aibos-platform/action-kernel/pkg/quota"
)

// Defaults used when a field of Settings is zero.
const (
	DefaultThreshold = 20
	DefaultWindow    = 60 * time.Second
	DefaultCooldown  = 60 * time.Second
)

// Settings tunes the breaker. Zero fields fall back to defaults.
type Settings struct {
	// Threshold is the error count within Window that opens the circuit.
	Threshold int64
	// Window is the error-counting window.
	Window time.Duration
	// Cooldown is how long a tripped engine stays rejected.
	Cooldown time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Threshold <= 0 {
		s.Threshold = DefaultThreshold
	}
	if s.Window <= 0 {
		s.Window = DefaultWindow
	}
	if s.Cooldown <= 0 {
		s.Cooldown = DefaultCooldown
	}
	return s
}

// CooldownError reports that an engine is (or just entered) cooldown.
type CooldownError struct {
	Engine string
	// Entered is true when this call is the one that tripped the breaker.
	Entered bool
}

func (e *CooldownError) Error() string {
	if e.Entered {
		return fmt.Sprintf("engine %q entered cooldown", e.Engine)
	}
	return fmt.Sprintf("engine %q is in cooldown", e.Engine)
}

// Status is a read-only snapshot for observability.
type Status struct {
	Engine      string `json:"engine"`
	ErrorCount  int64  `json:"error_count"`
	Threshold   int64  `json:"threshold"`
	CoolingDown bool   `json:"cooling_down"`
}

// Breaker tracks per-engine errors in the shared store.
type Breaker struct {
	store    quota.Store
	settings Settings
}

// NewBreaker creates a breaker over the shared store.
func NewBreaker(store quota.Store, settings Settings) *Breaker {
	return &Breaker{store: store, settings: settings.withDefaults()}
}

// RecordError counts one error for engine.
//
// If the engine is already cooling down the counter is left untouched and
// a CooldownError is returned, so unrelated traffic cannot extend the
// cooldown. If this error reaches the threshold the cooldown flag is set
// with its own TTL and a CooldownError with Entered=true is returned.
func (b *Breaker) RecordError(ctx context.Context, engine string) error {
	cooling, err := b.InCooldown(ctx, engine)
	if err != nil {
		return err
	}
	if cooling {
		return &CooldownError{Engine: engine}
	}

	res, err := b.store.Increment(ctx, b.errorKey(engine), b.settings.Window, b.settings.Threshold)
	if err != nil {
		return fmt.Errorf("circuit: error count for %s: %w", engine, err)
	}
	if res.Count >= b.settings.Threshold {
		if err := b.store.Set(ctx, b.cooldownKey(engine), "1", b.settings.Cooldown); err != nil {
			return fmt.Errorf("circuit: set cooldown for %s: %w", engine, err)
		}
		return &CooldownError{Engine: engine, Entered: true}
	}
	return nil
}

// InCooldown reports whether the cooldown flag is present for engine.
func (b *Breaker) InCooldown(ctx context.Context, engine string) (bool, error) {
	_, ok, err := b.store.Get(ctx, b.cooldownKey(engine))
	if err != nil {
		return false, fmt.Errorf("circuit: read cooldown for %s: %w", engine, err)
	}
	return ok, nil
}

// Status exposes the current error count, threshold, and cooldown flag.
func (b *Breaker) Status(ctx context.Context, engine string) (Status, error) {
	st := Status{Engine: engine, Threshold: b.settings.Threshold}

	cooling, err := b.InCooldown(ctx, engine)
	if err != nil {
		return st, err
	}
	st.CoolingDown = cooling

	val, ok, err := b.store.Get(ctx, b.errorKey(engine))
	if err != nil {
		return st, fmt.Errorf("circuit: read error count for %s: %w", engine, err)
	}
	if ok {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			st.ErrorCount = n
		}
	}
	return st, nil
}

// Reset is an administrative override that clears the cooldown flag only.
// The error counter expires naturally with its own window.
func (b *Breaker) Reset(ctx context.Context, engine string) error {
	if err := b.store.Delete(ctx, b.cooldownKey(engine)); err != nil {
		return fmt.Errorf("circuit: reset %s: %w", engine, err)
	}
	return nil
}

func (b *Breaker) errorKey(engine string) string {
	return "circuit:errors:" + engine
}

func (b *Breaker) cooldownKey(engine string) string {
	return "circuit:cooldown:" + engine
}
