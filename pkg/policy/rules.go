package policy

import "time"

// BandLimits are the execution constraints attached to an allowed band.
type BandLimits struct {
	MaxDuration       time.Duration
	MaxCallsPerMinute int
}

// Default band limits used by StandardRiskBandRules when zero values are
// supplied. High-risk actions run tight; medium run looser.
var (
	DefaultHighLimits   = BandLimits{MaxDuration: 5 * time.Second, MaxCallsPerMinute: 10}
	DefaultMediumLimits = BandLimits{MaxDuration: 30 * time.Second, MaxCallsPerMinute: 60}
)

// StandardRiskBandRules returns the reference rule set:
//
//	critical → deny, full audit
//	high     → allow with tight timeout/cap, full audit
//	medium   → allow with looser timeout/cap, basic audit
//	other    → nil (falls through to the engine default)
func StandardRiskBandRules(high, medium BandLimits) []Rule {
	if high == (BandLimits{}) {
		high = DefaultHighLimits
	}
	if medium == (BandLimits{}) {
		medium = DefaultMediumLimits
	}

	return []Rule{
		func(ctx Context) *Decision {
			if ctx.RiskBand != RiskCritical {
				return nil
			}
			return &Decision{
				Allow:      false,
				Reason:     "critical risk actions are denied",
				AuditLevel: AuditFull,
			}
		},
		func(ctx Context) *Decision {
			if ctx.RiskBand != RiskHigh {
				return nil
			}
			return &Decision{
				Allow:             true,
				MaxDuration:       high.MaxDuration,
				MaxCallsPerMinute: high.MaxCallsPerMinute,
				AuditLevel:        AuditFull,
			}
		},
		func(ctx Context) *Decision {
			if ctx.RiskBand != RiskMedium {
				return nil
			}
			return &Decision{
				Allow:             true,
				MaxDuration:       medium.MaxDuration,
				MaxCallsPerMinute: medium.MaxCallsPerMinute,
				AuditLevel:        AuditBasic,
			}
		},
	}
}
