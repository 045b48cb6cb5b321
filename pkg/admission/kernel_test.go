package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibos-platform/action-kernel/pkg/access"
	"github.com/aibos-platform/action-kernel/pkg/audit"
	"github.com/aibos-platform/action-kernel/pkg/circuit"
	"github.com/aibos-platform/action-kernel/pkg/config"
	"github.com/aibos-platform/action-kernel/pkg/events"
	"github.com/aibos-platform/action-kernel/pkg/policy"
	"github.com/aibos-platform/action-kernel/pkg/quota"
)

type kernelFixture struct {
	kernel *Kernel
	store  *quota.MemoryStore
	sink   *recordingSink
}

type recordingSink struct {
	entries []audit.Entry
}

func (s *recordingSink) Record(ctx context.Context, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func newFixture(t *testing.T, mutate func(*Deps, *quota.MemoryStore)) *kernelFixture {
	t.Helper()

	store := quota.NewMemoryStore()
	sink := &recordingSink{}

	rules := policy.NewEngine()
	for _, r := range policy.StandardRiskBandRules(policy.BandLimits{}, policy.BandLimits{}) {
		rules.Register(r)
	}

	deps := Deps{
		Checker: access.NewChecker(access.NewRoleTable(map[string][]string{
			"tenant.viewer": {"data.read", "reports.view"},
			"tenant.admin":  {"data.read", "data.write", "finance.write_invoice"},
		})),
		Rules:         rules,
		GlobalLimiter: quota.NewLimiter(store, quota.ScopeGlobal, time.Minute, 5000),
		TenantLimiter: quota.NewLimiter(store, quota.ScopeTenant, time.Minute, 1000),
		EngineLimiter: quota.NewLimiter(store, quota.ScopeEngine, time.Minute, 300),
		Breaker:       circuit.NewBreaker(store, circuit.Settings{Threshold: 3}),
		Bus:           events.NewBus(events.NewMemoryLedger(time.Minute), nil),
		Sink:          sink,
	}
	if mutate != nil {
		mutate(&deps, store)
	}

	kernel, err := New(deps)
	require.NoError(t, err)
	return &kernelFixture{kernel: kernel, store: store, sink: sink}
}

func viewer() *access.Principal {
	return &access.Principal{ID: "alice", TenantID: "acme", Roles: []string{"tenant.viewer"}}
}

func admin() *access.Principal {
	return &access.Principal{ID: "root", TenantID: "acme", Roles: []string{"tenant.admin"}}
}

func TestAdmitsAllowedRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.kernel.CheckAdmission(ctx, admin(), Request{
		TenantID: "acme", Engine: "ocr", Action: "finance.write_invoice", RiskBand: policy.RiskMedium,
	})
	require.NoError(t, err)
	require.True(t, res.Admitted)
	assert.Equal(t, 30*time.Second, res.Constraints.MaxDuration)
	assert.Nil(t, res.Rejection)

	require.Len(t, f.sink.entries, 1)
	assert.True(t, f.sink.entries[0].Allowed)
	assert.Equal(t, string(StageAdmitted), f.sink.entries[0].Stage)
}

func TestPermissionDeniedBeforeAnyQuotaCheck(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.kernel.CheckAdmission(ctx, viewer(), Request{
		TenantID: "acme", Engine: "ocr", Action: "finance.write_invoice", RiskBand: policy.RiskMedium,
	})
	require.NoError(t, err)
	require.False(t, res.Admitted)
	assert.Equal(t, StagePermission, res.Rejection.Stage)

	var denied *access.PermissionDeniedError
	require.True(t, errors.As(res.Rejection.Err, &denied))
	assert.Equal(t, "finance.write_invoice", denied.Permission.Name)

	// No quota counter was touched by the rejected request.
	for _, key := range []string{"quota:global:all", "quota:tenant:acme", "quota:engine:ocr"} {
		_, ok, err := f.store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "counter %s should be untouched", key)
	}
}

func TestPolicyDenyBeforeQuota(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.kernel.CheckAdmission(ctx, admin(), Request{
		TenantID: "acme", Engine: "ocr", Action: "finance.write_invoice", RiskBand: policy.RiskCritical,
	})
	require.NoError(t, err)
	require.False(t, res.Admitted)
	assert.Equal(t, StagePolicy, res.Rejection.Stage)

	var violation *policy.PolicyViolationError
	require.True(t, errors.As(res.Rejection.Err, &violation))

	_, ok, err := f.store.Get(ctx, "quota:tenant:acme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngineQuotaExhaustedOn301stCall(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := Request{TenantID: "acme", Engine: "ocr", Action: "data.read", RiskBand: policy.RiskLow}

	for i := 0; i < 300; i++ {
		res, err := f.kernel.CheckAdmission(ctx, admin(), req)
		require.NoError(t, err)
		require.True(t, res.Admitted, "call %d should be admitted", i+1)
	}

	res, err := f.kernel.CheckAdmission(ctx, admin(), req)
	require.NoError(t, err)
	require.False(t, res.Admitted)
	assert.Equal(t, StageQuotaEngine, res.Rejection.Stage)
	assert.LessOrEqual(t, res.Rejection.RetryIn, 60*time.Second)
	assert.Greater(t, res.Rejection.RetryIn, time.Duration(0))

	var exceeded *quota.ExceededError
	require.True(t, errors.As(res.Rejection.Err, &exceeded))
	assert.Equal(t, quota.ScopeEngine, exceeded.Scope)
}

func TestQuotaStagesCheckedInOrder(t *testing.T) {
	f := newFixture(t, func(d *Deps, store *quota.MemoryStore) {
		d.TenantLimiter = quota.NewLimiter(store, quota.ScopeTenant, time.Minute, 0)
	})
	ctx := context.Background()

	res, err := f.kernel.CheckAdmission(ctx, admin(), Request{
		TenantID: "acme", Engine: "ocr", Action: "data.read", RiskBand: policy.RiskLow,
	})
	require.NoError(t, err)
	require.False(t, res.Admitted)
	assert.Equal(t, StageQuotaTenant, res.Rejection.Stage)

	// The global counter was consumed, the engine counter was not.
	val, ok, err := f.store.Get(ctx, "quota:global:all")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", val)

	_, ok, err = f.store.Get(ctx, "quota:engine:ocr")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCircuitCooldownRejects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Trip the breaker: threshold 3.
	for i := 0; i < 3; i++ {
		_ = f.kernel.RecordOutcome(ctx, "ocr", false)
	}

	res, err := f.kernel.CheckAdmission(ctx, admin(), Request{
		TenantID: "acme", Engine: "ocr", Action: "data.read", RiskBand: policy.RiskLow,
	})
	require.NoError(t, err)
	require.False(t, res.Admitted)
	assert.Equal(t, StageCircuit, res.Rejection.Stage)

	var cooldown *circuit.CooldownError
	require.True(t, errors.As(res.Rejection.Err, &cooldown))
}

func TestRecordOutcomeSuccessIsNoOp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.kernel.RecordOutcome(ctx, "ocr", true))
	st, err := f.kernel.CircuitStatus(ctx, "ocr")
	require.NoError(t, err)
	assert.Zero(t, st.ErrorCount)
}

func TestRecordOutcomeTripReturnsCooldownError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.kernel.RecordOutcome(ctx, "ocr", false))
	require.NoError(t, f.kernel.RecordOutcome(ctx, "ocr", false))

	err := f.kernel.RecordOutcome(ctx, "ocr", false)
	var cooldown *circuit.CooldownError
	require.True(t, errors.As(err, &cooldown))
	assert.True(t, cooldown.Entered)

	require.NoError(t, f.kernel.ResetCircuit(ctx, "ocr"))
	st, err := f.kernel.CircuitStatus(ctx, "ocr")
	require.NoError(t, err)
	assert.False(t, st.CoolingDown)
}

type failingStore struct{ quota.Store }

func (failingStore) Increment(ctx context.Context, key string, window time.Duration, max int64) (quota.Result, error) {
	return quota.Result{}, errors.New("store unreachable")
}

func TestStoreFailureFailsClosedByDefault(t *testing.T) {
	f := newFixture(t, func(d *Deps, _ *quota.MemoryStore) {
		d.GlobalLimiter = quota.NewLimiter(failingStore{}, quota.ScopeGlobal, time.Minute, 10)
	})

	_, err := f.kernel.CheckAdmission(context.Background(), admin(), Request{
		TenantID: "acme", Engine: "ocr", Action: "data.read", RiskBand: policy.RiskLow,
	})
	require.Error(t, err)
}

func TestStoreFailureFailsOpenWhenConfigured(t *testing.T) {
	f := newFixture(t, func(d *Deps, _ *quota.MemoryStore) {
		d.GlobalLimiter = quota.NewLimiter(failingStore{}, quota.ScopeGlobal, time.Minute, 10)
		d.FailOpen = true
	})

	res, err := f.kernel.CheckAdmission(context.Background(), admin(), Request{
		TenantID: "acme", Engine: "ocr", Action: "data.read", RiskBand: policy.RiskLow,
	})
	require.NoError(t, err)
	assert.True(t, res.Admitted)
}

func TestSystemPrincipalSkipsPermissionOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.kernel.CheckAdmission(ctx, &access.Principal{ID: access.SystemPrincipalID}, Request{
		TenantID: "acme", Engine: "ocr", Action: "anything.at_all", RiskBand: policy.RiskCritical,
	})
	require.NoError(t, err)
	// Policy still applies to the system principal.
	require.False(t, res.Admitted)
	assert.Equal(t, StagePolicy, res.Rejection.Stage)
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestNewFromProfileWiresEverything(t *testing.T) {
	cfg := &config.Config{SharedReplayLedger: true}
	prof := config.DefaultProfile()
	prof.Roles = map[string][]string{"tenant.admin": {"data.read"}}
	prof.Policy.DenyRules = []policy.DenyRuleConfig{
		{Expr: `engine == "forbidden"`, Reason: "engine is blocked"},
	}

	store := quota.NewMemoryStore()
	kernel, err := NewFromProfile(cfg, prof, store, nil, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := kernel.CheckAdmission(ctx, admin(), Request{
		TenantID: "acme", Engine: "forbidden", Action: "data.read", RiskBand: policy.RiskLow,
	})
	require.NoError(t, err)
	require.False(t, res.Admitted)
	assert.Equal(t, StagePolicy, res.Rejection.Stage)
	assert.Equal(t, "engine is blocked", res.Rejection.Reason)

	res, err = kernel.CheckAdmission(ctx, admin(), Request{
		TenantID: "acme", Engine: "ocr", Action: "data.read", RiskBand: policy.RiskLow,
	})
	require.NoError(t, err)
	assert.True(t, res.Admitted)
}

func TestNewFromProfileRejectsBadRule(t *testing.T) {
	cfg := &config.Config{}
	prof := config.DefaultProfile()
	prof.Policy.DenyRules = []policy.DenyRuleConfig{{Expr: `engine ==`}}

	_, err := NewFromProfile(cfg, prof, quota.NewMemoryStore(), nil, nil, nil)
	require.Error(t, err)
}
