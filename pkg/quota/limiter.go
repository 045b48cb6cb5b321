package quota

import (
	"context"
	"fmt"
	"time"
)

// Scope identifies which granularity a limiter guards.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeTenant Scope = "tenant"
	ScopeEngine Scope = "engine"
)

// globalID is the single bucket id used by the global limiter.
const globalID = "all"

// ExceededError reports a rejected increment and when the window resets.
type ExceededError struct {
	Scope   Scope
	ID      string
	Max     int64
	ResetIn time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded for %q (max %d): retry in %dms",
		e.Scope, e.ID, e.Max, e.ResetIn.Milliseconds())
}

// Limiter enforces a fixed-window maximum for one scope.
type Limiter struct {
	store  Store
	scope  Scope
	window time.Duration
	max    int64
}

// NewLimiter creates a limiter for one scope over the shared store.
func NewLimiter(store Store, scope Scope, window time.Duration, max int64) *Limiter {
	return &Limiter{store: store, scope: scope, window: window, max: max}
}

// Scope returns the limiter's scope class.
func (l *Limiter) Scope() Scope { return l.scope }

// Allow counts one call for id and returns nil if the window budget holds.
// On rejection it returns an *ExceededError carrying the reset hint; any
// other error is a store failure and the caller decides the fail policy.
func (l *Limiter) Allow(ctx context.Context, id string) (Result, error) {
	if l.scope == ScopeGlobal {
		id = globalID
	}
	res, err := l.store.Increment(ctx, l.key(id), l.window, l.max)
	if err != nil {
		return Result{}, err
	}
	if !res.Allowed {
		return res, &ExceededError{Scope: l.scope, ID: id, Max: l.max, ResetIn: res.ResetIn}
	}
	return res, nil
}

func (l *Limiter) key(id string) string {
	return fmt.Sprintf("quota:%s:%s", l.scope, id)
}
