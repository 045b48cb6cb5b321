package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DenyRuleConfig is a configuration-supplied deny rule: a boolean CEL
// expression over the decision context. When the expression evaluates to
// true the request is denied with the configured reason.
type DenyRuleConfig struct {
	Expr   string `yaml:"expr" json:"expr"`
	Reason string `yaml:"reason" json:"reason"`
}

// celEnv builds the evaluation environment shared by all compiled rules.
// The context is exposed as flat variables so expressions read naturally:
//
//	engine == "ocr" && risk_band == "high"
//	action.startsWith("finance.") && role != "tenant.admin"
func celEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("tenant", cel.StringType),
		cel.Variable("engine", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("role", cel.StringType),
		cel.Variable("risk_band", cel.StringType),
		cel.Variable("metadata", cel.DynType),
	)
}

// CompileDenyRule compiles cfg.Expr once and returns a Rule backed by the
// cached program. Compile errors surface here, at registration time, not
// during evaluation. A runtime evaluation error fails closed: the rule
// denies with the error in the reason.
func CompileDenyRule(cfg DenyRuleConfig) (Rule, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("policy: cel environment: %w", err)
	}

	ast, issues := env.Compile(cfg.Expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("policy: compile %q: %w", cfg.Expr, issues.Err())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: program %q: %w", cfg.Expr, err)
	}

	reason := cfg.Reason
	if reason == "" {
		reason = fmt.Sprintf("denied by rule %q", cfg.Expr)
	}

	return func(ctx Context) *Decision {
		metadata := ctx.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		out, _, err := prg.Eval(map[string]any{
			"tenant":    ctx.TenantID,
			"engine":    ctx.Engine,
			"action":    ctx.Action,
			"role":      ctx.Role,
			"risk_band": string(ctx.RiskBand),
			"metadata":  metadata,
		})
		if err != nil {
			return &Decision{
				Allow:      false,
				Reason:     fmt.Sprintf("rule evaluation error: %v", err),
				AuditLevel: AuditFull,
			}
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return &Decision{Allow: false, Reason: reason, AuditLevel: AuditFull}
		}
		return nil
	}, nil
}

// CompileDenyRules compiles a list of configured rules in order.
func CompileDenyRules(cfgs []DenyRuleConfig) ([]Rule, error) {
	rules := make([]Rule, 0, len(cfgs))
	for _, cfg := range cfgs {
		rule, err := CompileDenyRule(cfg)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
