package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aibos-platform/action-kernel/pkg/access"
	"github.com/aibos-platform/action-kernel/pkg/audit"
	"github.com/aibos-platform/action-kernel/pkg/circuit"
	"github.com/aibos-platform/action-kernel/pkg/events"
	"github.com/aibos-platform/action-kernel/pkg/observability"
	"github.com/aibos-platform/action-kernel/pkg/policy"
	"github.com/aibos-platform/action-kernel/pkg/quota"
)

// Deps are the collaborators a Kernel composes. Checker, Rules, the three
// Limiters, Breaker, and Bus are required; Sink, Metrics, and Logger are
// optional.
type Deps struct {
	Checker       *access.Checker
	Rules         *policy.Engine
	GlobalLimiter *quota.Limiter
	TenantLimiter *quota.Limiter
	EngineLimiter *quota.Limiter
	Breaker       *circuit.Breaker
	Bus           *events.Bus
	Sink          audit.Sink
	Metrics       *observability.Metrics
	Logger        *slog.Logger

	// FailOpen admits requests past a check whose store round trip
	// failed, instead of failing the admission. Default is fail closed:
	// a limiter that cannot count cannot limit.
	FailOpen bool
}

// Kernel is the admission-control layer: it decides whether one action
// invocation may proceed, and with which constraints.
type Kernel struct {
	deps   Deps
	logger *slog.Logger
}

// New validates deps and builds a Kernel.
func New(deps Deps) (*Kernel, error) {
	switch {
	case deps.Checker == nil:
		return nil, errors.New("admission: nil permission checker")
	case deps.Rules == nil:
		return nil, errors.New("admission: nil policy engine")
	case deps.GlobalLimiter == nil || deps.TenantLimiter == nil || deps.EngineLimiter == nil:
		return nil, errors.New("admission: all three limiters are required")
	case deps.Breaker == nil:
		return nil, errors.New("admission: nil circuit breaker")
	case deps.Bus == nil:
		return nil, errors.New("admission: nil event bus")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Kernel{deps: deps, logger: logger}, nil
}

// CheckAdmission runs the admission pipeline for one request:
// permission → policy → global quota → tenant quota → engine quota →
// circuit, short-circuiting at the first failing stage.
//
// Taxonomy rejections come back inside the Result, never as the error
// return; the error return is reserved for store failures under the
// default fail-closed policy.
func (k *Kernel) CheckAdmission(ctx context.Context, principal *access.Principal, req Request) (Result, error) {
	perm := access.ParsePermission(req.Action)
	if err := k.deps.Checker.AssertPermission(principal, perm); err != nil {
		return k.reject(ctx, principal, req, Rejection{
			Stage:  StagePermission,
			Reason: err.Error(),
			Err:    err,
		}, policy.AuditBasic), nil
	}

	decision := k.deps.Rules.Evaluate(policy.Context{
		TenantID: req.TenantID,
		Engine:   req.Engine,
		Action:   req.Action,
		Role:     primaryRole(principal),
		RiskBand: req.RiskBand,
		Metadata: req.Metadata,
	})
	if err := policy.AssertAllowed(decision); err != nil {
		return k.reject(ctx, principal, req, Rejection{
			Stage:  StagePolicy,
			Reason: decision.Reason,
			Err:    err,
		}, decision.AuditLevel), nil
	}

	quotaChecks := []struct {
		limiter *quota.Limiter
		id      string
		stage   Stage
	}{
		{k.deps.GlobalLimiter, "", StageQuotaGlobal},
		{k.deps.TenantLimiter, req.TenantID, StageQuotaTenant},
		{k.deps.EngineLimiter, req.Engine, StageQuotaEngine},
	}
	for _, check := range quotaChecks {
		_, err := check.limiter.Allow(ctx, check.id)
		if err == nil {
			continue
		}
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			if k.deps.Metrics != nil {
				k.deps.Metrics.QuotaRejected(ctx, string(exceeded.Scope))
			}
			return k.reject(ctx, principal, req, Rejection{
				Stage:   check.stage,
				Reason:  err.Error(),
				RetryIn: exceeded.ResetIn,
				Err:     err,
			}, decision.AuditLevel), nil
		}
		if k.deps.FailOpen {
			k.logger.Warn("quota store unavailable, failing open",
				"stage", string(check.stage), "error", err)
			continue
		}
		return Result{}, fmt.Errorf("admission: %s check: %w", check.stage, err)
	}

	cooling, err := k.deps.Breaker.InCooldown(ctx, req.Engine)
	if err != nil {
		if !k.deps.FailOpen {
			return Result{}, fmt.Errorf("admission: circuit check: %w", err)
		}
		k.logger.Warn("circuit state unavailable, failing open", "error", err)
		cooling = false
	}
	if cooling {
		cdErr := &circuit.CooldownError{Engine: req.Engine}
		return k.reject(ctx, principal, req, Rejection{
			Stage:  StageCircuit,
			Reason: cdErr.Error(),
			Err:    cdErr,
		}, decision.AuditLevel), nil
	}

	k.record(ctx, principal, req, audit.Entry{
		Stage:      string(StageAdmitted),
		Allowed:    true,
		AuditLevel: string(decision.AuditLevel),
	})
	if k.deps.Metrics != nil {
		k.deps.Metrics.AdmissionDecided(ctx, true, string(StageAdmitted))
	}
	return Result{Admitted: true, Constraints: decision}, nil
}

// RecordOutcome feeds an execution outcome into the circuit breaker.
// Successes are a no-op. For failures the returned error reports the
// engine's circuit state: nil while closed, *circuit.CooldownError when
// the engine is cooling down or this failure tripped it.
func (k *Kernel) RecordOutcome(ctx context.Context, engine string, succeeded bool) error {
	if succeeded {
		return nil
	}
	err := k.deps.Breaker.RecordError(ctx, engine)
	var cooldown *circuit.CooldownError
	if errors.As(err, &cooldown) && cooldown.Entered {
		if k.deps.Metrics != nil {
			k.deps.Metrics.CircuitTripped(ctx, engine)
		}
		k.logger.Warn("circuit breaker tripped", "engine", engine)
	}
	return err
}

// PublishOutcomeEvent publishes an outcome envelope on the idempotent
// event bus. Duplicates within the replay window are silently dropped.
func (k *Kernel) PublishOutcomeEvent(ctx context.Context, ev events.Envelope) error {
	return k.deps.Bus.Publish(ctx, ev)
}

// CircuitStatus exposes the engine's breaker state for operators.
func (k *Kernel) CircuitStatus(ctx context.Context, engine string) (circuit.Status, error) {
	return k.deps.Breaker.Status(ctx, engine)
}

// ResetCircuit is the administrative override clearing an engine's
// cooldown flag.
func (k *Kernel) ResetCircuit(ctx context.Context, engine string) error {
	return k.deps.Breaker.Reset(ctx, engine)
}

func (k *Kernel) reject(ctx context.Context, principal *access.Principal, req Request, rej Rejection, level policy.AuditLevel) Result {
	k.record(ctx, principal, req, audit.Entry{
		Stage:      string(rej.Stage),
		Allowed:    false,
		Reason:     rej.Reason,
		AuditLevel: string(level),
	})
	if k.deps.Metrics != nil {
		k.deps.Metrics.AdmissionDecided(ctx, false, string(rej.Stage))
	}
	return Result{Rejection: &rej}
}

// record reports to the audit sink fire-and-forget: a failing sink is
// logged and never blocks admission.
func (k *Kernel) record(ctx context.Context, principal *access.Principal, req Request, entry audit.Entry) {
	if k.deps.Sink == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now().UTC()
	if principal != nil {
		entry.Principal = principal.ID
	}
	entry.TenantID = req.TenantID
	entry.Engine = req.Engine
	entry.Action = req.Action
	if err := k.deps.Sink.Record(ctx, entry); err != nil {
		k.logger.Error("audit sink failed", "stage", entry.Stage, "error", err)
	}
}

func primaryRole(p *access.Principal) string {
	if p == nil || len(p.Roles) == 0 {
		return ""
	}
	return p.Roles[0]
}
