package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aibos-platform/action-kernel/pkg/policy"
)

// Profile is the tunable admission parameter set, loaded from YAML.
// Every kernel instance must load the same profile so the role table and
// rule list are rebuilt identically everywhere.
type Profile struct {
	Quota   QuotaProfile   `yaml:"quota" json:"quota"`
	Circuit CircuitProfile `yaml:"circuit" json:"circuit"`
	Events  EventsProfile  `yaml:"events" json:"events"`
	Policy  PolicyProfile  `yaml:"policy" json:"policy"`
	// Roles maps role names to permission names.
	Roles map[string][]string `yaml:"roles" json:"roles"`
}

// QuotaProfile sets per-scope window lengths and maximums.
type QuotaProfile struct {
	GlobalWindowSeconds int   `yaml:"global_window_seconds" json:"global_window_seconds"`
	GlobalMax           int64 `yaml:"global_max" json:"global_max"`
	TenantWindowSeconds int   `yaml:"tenant_window_seconds" json:"tenant_window_seconds"`
	TenantMax           int64 `yaml:"tenant_max" json:"tenant_max"`
	EngineWindowSeconds int   `yaml:"engine_window_seconds" json:"engine_window_seconds"`
	EngineMax           int64 `yaml:"engine_max" json:"engine_max"`
}

// CircuitProfile sets the breaker's threshold, window, and cooldown.
type CircuitProfile struct {
	ErrorThreshold     int64 `yaml:"error_threshold" json:"error_threshold"`
	ErrorWindowSeconds int   `yaml:"error_window_seconds" json:"error_window_seconds"`
	CooldownSeconds    int   `yaml:"cooldown_seconds" json:"cooldown_seconds"`
}

// EventsProfile sets the replay-ledger window.
type EventsProfile struct {
	ReplayWindowSeconds int `yaml:"replay_window_seconds" json:"replay_window_seconds"`
}

// BandProfile sets the execution constraints for one risk band.
type BandProfile struct {
	MaxDurationMs     int `yaml:"max_duration_ms" json:"max_duration_ms"`
	MaxCallsPerMinute int `yaml:"max_calls_per_minute" json:"max_calls_per_minute"`
}

// PolicyProfile sets the default decision, per-band parameters, and
// configuration-supplied CEL deny rules.
type PolicyProfile struct {
	DefaultAllow  bool                    `yaml:"default_allow" json:"default_allow"`
	DefaultReason string                  `yaml:"default_reason,omitempty" json:"default_reason,omitempty"`
	High          BandProfile             `yaml:"high" json:"high"`
	Medium        BandProfile             `yaml:"medium" json:"medium"`
	DenyRules     []policy.DenyRuleConfig `yaml:"deny_rules,omitempty" json:"deny_rules,omitempty"`
}

// DefaultProfile returns the reference parameter set: 60s windows, tenant
// cap 1000, engine cap 300, circuit threshold 20, cooldown 60s.
func DefaultProfile() *Profile {
	return &Profile{
		Quota: QuotaProfile{
			GlobalWindowSeconds: 60,
			GlobalMax:           5000,
			TenantWindowSeconds: 60,
			TenantMax:           1000,
			EngineWindowSeconds: 60,
			EngineMax:           300,
		},
		Circuit: CircuitProfile{
			ErrorThreshold:     20,
			ErrorWindowSeconds: 60,
			CooldownSeconds:    60,
		},
		Events: EventsProfile{ReplayWindowSeconds: 60},
		Policy: PolicyProfile{
			DefaultAllow: true,
			High:         BandProfile{MaxDurationMs: 5000, MaxCallsPerMinute: 10},
			Medium:       BandProfile{MaxDurationMs: 30000, MaxCallsPerMinute: 60},
		},
	}
}

// LoadProfile reads a YAML profile, filling unset numeric fields from
// DefaultProfile so partial profiles stay valid.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load profile %q: %w", path, err)
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("config: parse profile %q: %w", path, err)
	}
	profile.applyDefaults()
	return profile, nil
}

func (p *Profile) applyDefaults() {
	def := DefaultProfile()
	if p.Quota.GlobalWindowSeconds <= 0 {
		p.Quota.GlobalWindowSeconds = def.Quota.GlobalWindowSeconds
	}
	if p.Quota.GlobalMax <= 0 {
		p.Quota.GlobalMax = def.Quota.GlobalMax
	}
	if p.Quota.TenantWindowSeconds <= 0 {
		p.Quota.TenantWindowSeconds = def.Quota.TenantWindowSeconds
	}
	if p.Quota.TenantMax <= 0 {
		p.Quota.TenantMax = def.Quota.TenantMax
	}
	if p.Quota.EngineWindowSeconds <= 0 {
		p.Quota.EngineWindowSeconds = def.Quota.EngineWindowSeconds
	}
	if p.Quota.EngineMax <= 0 {
		p.Quota.EngineMax = def.Quota.EngineMax
	}
	if p.Circuit.ErrorThreshold <= 0 {
		p.Circuit.ErrorThreshold = def.Circuit.ErrorThreshold
	}
	if p.Circuit.ErrorWindowSeconds <= 0 {
		p.Circuit.ErrorWindowSeconds = def.Circuit.ErrorWindowSeconds
	}
	if p.Circuit.CooldownSeconds <= 0 {
		p.Circuit.CooldownSeconds = def.Circuit.CooldownSeconds
	}
	if p.Events.ReplayWindowSeconds <= 0 {
		p.Events.ReplayWindowSeconds = def.Events.ReplayWindowSeconds
	}
	if p.Policy.High == (BandProfile{}) {
		p.Policy.High = def.Policy.High
	}
	if p.Policy.Medium == (BandProfile{}) {
		p.Policy.Medium = def.Policy.Medium
	}
}

// GlobalWindow returns the global quota window as a duration.
func (p *Profile) GlobalWindow() time.Duration {
	return time.Duration(p.Quota.GlobalWindowSeconds) * time.Second
}

// TenantWindow returns the tenant quota window as a duration.
func (p *Profile) TenantWindow() time.Duration {
	return time.Duration(p.Quota.TenantWindowSeconds) * time.Second
}

// EngineWindow returns the engine quota window as a duration.
func (p *Profile) EngineWindow() time.Duration {
	return time.Duration(p.Quota.EngineWindowSeconds) * time.Second
}

// ErrorWindow returns the circuit error window as a duration.
func (p *Profile) ErrorWindow() time.Duration {
	return time.Duration(p.Circuit.ErrorWindowSeconds) * time.Second
}

// Cooldown returns the circuit cooldown as a duration.
func (p *Profile) Cooldown() time.Duration {
	return time.Duration(p.Circuit.CooldownSeconds) * time.Second
}

// ReplayWindow returns the replay-ledger window as a duration.
func (p *Profile) ReplayWindow() time.Duration {
	return time.Duration(p.Events.ReplayWindowSeconds) * time.Second
}

// HighLimits returns the high band constraints as policy limits.
func (p *Profile) HighLimits() policy.BandLimits {
	return policy.BandLimits{
		MaxDuration:       time.Duration(p.Policy.High.MaxDurationMs) * time.Millisecond,
		MaxCallsPerMinute: p.Policy.High.MaxCallsPerMinute,
	}
}

// MediumLimits returns the medium band constraints as policy limits.
func (p *Profile) MediumLimits() policy.BandLimits {
	return policy.BandLimits{
		MaxDuration:       time.Duration(p.Policy.Medium.MaxDurationMs) * time.Millisecond,
		MaxCallsPerMinute: p.Policy.Medium.MaxCallsPerMinute,
	}
}
