// Package policy implements the ordered-rule decision engine that turns a
// classified request into an allow/deny decision with execution
// constraints. Rules are pure functions of their context: no clock, no
// I/O, no hidden state, so evaluation is deterministic and auditable.
package policy

import "time"

// RiskBand is a coarse classification of an action's sensitivity.
type RiskBand string

const (
	RiskLow      RiskBand = "low"
	RiskMedium   RiskBand = "medium"
	RiskHigh     RiskBand = "high"
	RiskCritical RiskBand = "critical"
)

// AuditLevel controls how much of a decision is reported to the audit sink.
type AuditLevel string

const (
	AuditNone  AuditLevel = "none"
	AuditBasic AuditLevel = "basic"
	AuditFull  AuditLevel = "full"
)

// Context describes one decision request. It is immutable: constructed
// per request and discarded after the decision.
type Context struct {
	TenantID string         `json:"tenant_id"`
	Engine   string         `json:"engine"`
	Action   string         `json:"action"`
	Role     string         `json:"role"`
	RiskBand RiskBand       `json:"risk_band"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Decision is the outcome of rule evaluation: an allow/deny flag plus
// optional execution constraints handed to the dispatcher.
type Decision struct {
	Allow             bool          `json:"allow"`
	Reason            string        `json:"reason,omitempty"`
	MaxDuration       time.Duration `json:"max_duration,omitempty"`
	MaxCallsPerMinute int           `json:"max_calls_per_minute,omitempty"`
	RequireApproval   bool          `json:"require_approval,omitempty"`
	AuditLevel        AuditLevel    `json:"audit_level,omitempty"`
}

// Rule inspects a context and returns a decision, or nil to pass to the
// next rule. Rules must be pure: same context, same result.
type Rule func(Context) *Decision
