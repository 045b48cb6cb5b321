package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileDenyRuleMatches(t *testing.T) {
	rule, err := CompileDenyRule(DenyRuleConfig{
		Expr:   `engine == "ocr" && action.startsWith("finance.")`,
		Reason: "finance actions are not allowed on the ocr engine",
	})
	require.NoError(t, err)

	d := rule(Context{Engine: "ocr", Action: "finance.write_invoice"})
	require.NotNil(t, d)
	assert.False(t, d.Allow)
	assert.Equal(t, "finance actions are not allowed on the ocr engine", d.Reason)
	assert.Equal(t, AuditFull, d.AuditLevel)

	assert.Nil(t, rule(Context{Engine: "ocr", Action: "data.read"}))
	assert.Nil(t, rule(Context{Engine: "metadata", Action: "finance.write_invoice"}))
}

func TestCompileDenyRuleCompileErrorAtRegistration(t *testing.T) {
	_, err := CompileDenyRule(DenyRuleConfig{Expr: `engine == `})
	require.Error(t, err)

	_, err = CompileDenyRule(DenyRuleConfig{Expr: `no_such_var == "x"`})
	require.Error(t, err)
}

func TestCompileDenyRuleMetadata(t *testing.T) {
	rule, err := CompileDenyRule(DenyRuleConfig{
		Expr:   `metadata.origin == "untrusted"`,
		Reason: "untrusted origin",
	})
	require.NoError(t, err)

	d := rule(Context{Metadata: map[string]any{"origin": "untrusted"}})
	require.NotNil(t, d)
	assert.False(t, d.Allow)

	// Missing metadata key is a runtime error: the rule fails closed.
	d = rule(Context{})
	require.NotNil(t, d)
	assert.False(t, d.Allow)
	assert.Contains(t, d.Reason, "rule evaluation error")
}

func TestCompileDenyRulesOrder(t *testing.T) {
	rules, err := CompileDenyRules([]DenyRuleConfig{
		{Expr: `risk_band == "high"`, Reason: "first"},
		{Expr: `risk_band == "high"`, Reason: "second"},
	})
	require.NoError(t, err)
	require.Len(t, rules, 2)

	e := NewEngine()
	for _, r := range rules {
		e.Register(r)
	}
	d := e.Evaluate(Context{RiskBand: RiskHigh})
	assert.Equal(t, "first", d.Reason)
}

func TestCompileDenyRuleDefaultReason(t *testing.T) {
	rule, err := CompileDenyRule(DenyRuleConfig{Expr: `true`})
	require.NoError(t, err)
	d := rule(Context{})
	require.NotNil(t, d)
	assert.Contains(t, d.Reason, "denied by rule")
}
