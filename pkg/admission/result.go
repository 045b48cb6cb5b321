// Package admission composes the permission, policy, quota, and circuit
// checks into the single pipeline the action dispatcher calls before
// executing anything, and feeds outcomes back into the breaker and the
// event bus afterwards.
package admission

import (
	"time"

	"github.com/aibos-platform/action-kernel/pkg/policy"
)

// Stage names the pipeline stage that decided a request.
type Stage string

const (
	StagePermission  Stage = "permission"
	StagePolicy      Stage = "policy"
	StageQuotaGlobal Stage = "quota.global"
	StageQuotaTenant Stage = "quota.tenant"
	StageQuotaEngine Stage = "quota.engine"
	StageCircuit     Stage = "circuit"
	// StageAdmitted marks a request that passed every check.
	StageAdmitted Stage = "admitted"
)

// Request identifies one action invocation to admit.
type Request struct {
	TenantID string          `json:"tenant_id"`
	Engine   string          `json:"engine"`
	Action   string          `json:"action"`
	RiskBand policy.RiskBand `json:"risk_band"`
	// Metadata is passed through to policy rules.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Rejection describes why and where a request was turned away.
type Rejection struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
	// RetryIn is set for quota rejections: how long until the window
	// resets. Zero elsewhere.
	RetryIn time.Duration `json:"retry_in,omitempty"`
	// Err is the typed error (*access.PermissionDeniedError,
	// *policy.PolicyViolationError, *quota.ExceededError,
	// *circuit.CooldownError) for callers that switch on kind.
	Err error `json:"-"`
}

// Result is the tagged outcome of one admission check: either admitted
// with the policy decision's execution constraints, or rejected. Both
// paths must be handled explicitly at the call site.
type Result struct {
	Admitted    bool            `json:"admitted"`
	Constraints policy.Decision `json:"constraints,omitempty"`
	Rejection   *Rejection      `json:"rejection,omitempty"`
}
