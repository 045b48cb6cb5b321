package admission

import (
	"fmt"
	"log/slog"

	"github.com/aibos-platform/action-kernel/pkg/access"
	"github.com/aibos-platform/action-kernel/pkg/audit"
	"github.com/aibos-platform/action-kernel/pkg/circuit"
	"github.com/aibos-platform/action-kernel/pkg/config"
	"github.com/aibos-platform/action-kernel/pkg/events"
	"github.com/aibos-platform/action-kernel/pkg/observability"
	"github.com/aibos-platform/action-kernel/pkg/policy"
	"github.com/aibos-platform/action-kernel/pkg/quota"
)

// NewFromProfile assembles a Kernel from a loaded profile and a shared
// store. Every instance built from the same profile carries an identical
// role table and rule list; only the store is shared state.
func NewFromProfile(cfg *config.Config, prof *config.Profile, store quota.Store, sink audit.Sink, metrics *observability.Metrics, logger *slog.Logger) (*Kernel, error) {
	checker := access.NewChecker(access.NewRoleTable(prof.Roles))

	rules := policy.NewEngine()
	denyRules, err := policy.CompileDenyRules(prof.Policy.DenyRules)
	if err != nil {
		return nil, fmt.Errorf("admission: profile deny rules: %w", err)
	}
	for _, rule := range denyRules {
		rules.Register(rule)
	}
	for _, rule := range policy.StandardRiskBandRules(prof.HighLimits(), prof.MediumLimits()) {
		rules.Register(rule)
	}
	rules.SetDefault(policy.Decision{
		Allow:  prof.Policy.DefaultAllow,
		Reason: prof.Policy.DefaultReason,
	})

	var ledger events.Ledger
	if cfg.SharedReplayLedger {
		ledger = events.NewStoreLedger(store, prof.ReplayWindow())
	} else {
		ledger = events.NewMemoryLedger(prof.ReplayWindow())
	}
	bus := events.NewBus(ledger, logger)
	if metrics != nil {
		bus.SetMetrics(metrics)
	}

	return New(Deps{
		Checker:       checker,
		Rules:         rules,
		GlobalLimiter: quota.NewLimiter(store, quota.ScopeGlobal, prof.GlobalWindow(), prof.Quota.GlobalMax),
		TenantLimiter: quota.NewLimiter(store, quota.ScopeTenant, prof.TenantWindow(), prof.Quota.TenantMax),
		EngineLimiter: quota.NewLimiter(store, quota.ScopeEngine, prof.EngineWindow(), prof.Quota.EngineMax),
		Breaker: circuit.NewBreaker(store, circuit.Settings{
			Threshold: prof.Circuit.ErrorThreshold,
			Window:    prof.ErrorWindow(),
			Cooldown:  prof.Cooldown(),
		}),
		Bus:      bus,
		Sink:     sink,
		Metrics:  metrics,
		Logger:   logger,
		FailOpen: cfg.FailOpen,
	})
}
