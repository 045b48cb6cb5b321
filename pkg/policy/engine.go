package policy

import (
	"fmt"
	"sync"
)

// PolicyViolationError reports an explicit deny, carrying the decision's
// reason. It is never retried.
type PolicyViolationError struct {
	Reason string
}

func (e *PolicyViolationError) Error() string {
	if e.Reason == "" {
		return "policy violation"
	}
	return fmt.Sprintf("policy violation: %s", e.Reason)
}

// Engine evaluates registered rules in registration order and returns the
// first non-nil result; when every rule passes, the configured default
// decision applies (allow unless overridden).
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
	def   Decision
}

// NewEngine creates an engine whose default decision is allow.
func NewEngine() *Engine {
	return &Engine{def: Decision{Allow: true}}
}

// Register appends a rule. Registration order is evaluation order.
func (e *Engine) Register(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
}

// SetDefault replaces the fall-through decision.
func (e *Engine) SetDefault(d Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.def = d
}

// Evaluate runs the rules against ctx and returns the winning decision.
func (e *Engine) Evaluate(ctx Context) Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, rule := range e.rules {
		if d := rule(ctx); d != nil {
			return *d
		}
	}
	return e.def
}

// AssertAllowed returns a *PolicyViolationError when d denies.
func AssertAllowed(d Decision) error {
	if d.Allow {
		return nil
	}
	return &PolicyViolationError{Reason: d.Reason}
}
