package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubefreezer/kubefreezer/internal/clock"
	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/freezeschedule"
	"github.com/kubefreezer/kubefreezer/internal/history"
	"github.com/kubefreezer/kubefreezer/internal/policyconfig"
)

func newTestEvaluator(now time.Time) (*Evaluator, *policyconfig.Cache, *freezeschedule.Engine, *exemption.Store, *history.Recorder) {
	cache := policyconfig.NewCache()
	engine := freezeschedule.NewEngine()
	store := exemption.NewStore(func() time.Time { return now })
	recorder := history.NewRecorder(100)
	ck := clock.NewFakeClock(now)
	return New(cache, engine, store, recorder, ck), cache, engine, store, recorder
}

func baseRequest() AdmissionRequest {
	return AdmissionRequest{
		Kind:         "Deployment",
		Namespace:    "default",
		ResourceName: "web",
		User:         "alice",
		Operation:    Create,
	}
}

func TestEvaluate_UnmonitoredKind_Allowed(t *testing.T) {
	e, _, _, _, _ := newTestEvaluator(time.Now())
	req := baseRequest()
	req.Kind = "ConfigMap"

	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, NotMonitored, d.Category)
}

func TestEvaluate_UnmonitoredOperation_Allowed(t *testing.T) {
	e, _, _, _, _ := newTestEvaluator(time.Now())
	req := baseRequest()
	req.Operation = Delete

	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, NotMonitored, d.Category)
}

func TestEvaluate_AnnotationBypass(t *testing.T) {
	now := time.Now()
	e, cache, engine, _, recorder := newTestEvaluator(now)

	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cache.Install(cfg)
	s, err := freezeschedule.NewSchedule("always", "", nil, nil, nil, "* * * * *", "UTC")
	require.NoError(t, err)
	engine.Upsert(s)

	req := baseRequest()
	req.Annotations = map[string]string{
		cfg.BypassAnnotationKey:       "true",
		cfg.BypassReasonAnnotationKey: "incident response",
	}

	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, BypassAnnotation, d.Category)
	assert.Equal(t, "incident response", d.Reason)
	assert.Equal(t, 1, recorder.Len())
}

func TestEvaluate_AnnotationBypass_DefaultReason(t *testing.T) {
	e, cache, _, _, _ := newTestEvaluator(time.Now())
	cfg := cache.Load()
	req := baseRequest()
	req.Annotations = map[string]string{cfg.BypassAnnotationKey: "true"}

	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, "emergency bypass annotation present", d.Reason)
}

func TestEvaluate_AnnotationBypass_CaseInsensitive(t *testing.T) {
	e, cache, _, _, _ := newTestEvaluator(time.Now())
	cfg := cache.Load()
	req := baseRequest()
	req.Annotations = map[string]string{cfg.BypassAnnotationKey: "TRUE"}

	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, BypassAnnotation, d.Category)
}

func TestEvaluate_AnnotationBypass_FalseValueIgnored(t *testing.T) {
	now := time.Now()
	e, cache, engine, _, _ := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	req := baseRequest()
	req.Annotations = map[string]string{cfg.BypassAnnotationKey: "false"}

	d := e.Evaluate(context.Background(), req)
	assert.False(t, d.Allow)
}

func TestEvaluate_UserAllowlist(t *testing.T) {
	now := time.Now()
	e, cache, engine, _, recorder := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cfg.BypassAllowedUsers = map[string]struct{}{"alice": {}}
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	req := baseRequest()
	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, BypassUser, d.Category)
	assert.Equal(t, 1, recorder.Len())
}

func TestEvaluate_UserAllowlist_ByGroup(t *testing.T) {
	now := time.Now()
	e, cache, engine, _, _ := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cfg.BypassAllowedUsers = map[string]struct{}{"system:masters": {}}
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	req := baseRequest()
	req.User = "bob"
	req.Groups = []string{"system:masters"}

	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, BypassUser, d.Category)
}

func TestEvaluate_NamespaceExemption(t *testing.T) {
	now := time.Now()
	e, cache, engine, _, recorder := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cfg.BypassExemptNamespaces = map[string]struct{}{"default": {}}
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	req := baseRequest()
	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, BypassNamespace, d.Category)
	assert.Equal(t, 1, recorder.Len())
}

func TestEvaluate_TemporaryExemption(t *testing.T) {
	now := time.Now()
	e, cache, engine, store, recorder := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	_, err := store.Create("default", "", 30, "maintenance window", "ops")
	require.NoError(t, err)

	req := baseRequest()
	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, BypassExemption, d.Category)
	assert.Equal(t, "maintenance window", d.Reason)
	assert.Equal(t, 1, recorder.Len())
}

func TestEvaluate_TemporaryExemption_DefaultReason(t *testing.T) {
	now := time.Now()
	e, cache, engine, store, _ := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	ex, err := store.Create("default", "", 30, "", "ops")
	require.NoError(t, err)

	req := baseRequest()
	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Contains(t, d.Reason, ex.ID)
}

func TestEvaluate_ManualFreeze_Denied(t *testing.T) {
	now := time.Now()
	e, cache, _, _, recorder := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cfg.FreezeMessage = "cluster is frozen for maintenance"
	cache.Install(cfg)

	req := baseRequest()
	d := e.Evaluate(context.Background(), req)
	assert.False(t, d.Allow)
	assert.Equal(t, Frozen, d.Category)
	assert.Equal(t, "cluster is frozen for maintenance", d.Reason)
	assert.Equal(t, 1, recorder.Len())
}

func TestEvaluate_ManualFreeze_UntilExpired_Allowed(t *testing.T) {
	now := time.Now()
	e, cache, _, _, _ := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cfg.FreezeUntilUnixNano = now.Add(-time.Hour).UnixNano()
	cache.Install(cfg)

	req := baseRequest()
	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, NoFreeze, d.Category)
}

func TestEvaluate_ScheduledFreeze_Denied(t *testing.T) {
	now := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)
	e, _, engine, _, _ := newTestEvaluator(now)

	s, err := freezeschedule.NewSchedule("nightly", "nightly maintenance", nil, nil, nil, "0 2 * * *", "UTC")
	require.NoError(t, err)
	engine.Upsert(s)

	req := baseRequest()
	d := e.Evaluate(context.Background(), req)
	assert.False(t, d.Allow)
	assert.Equal(t, Frozen, d.Category)
	assert.Equal(t, "nightly maintenance", d.Reason)
}

func TestEvaluate_NoActiveFreeze_DefaultAllow(t *testing.T) {
	e, _, _, _, _ := newTestEvaluator(time.Now())
	req := baseRequest()
	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, NoFreeze, d.Category)
}

func TestEvaluate_ContextDone_FailsClosedByDefault(t *testing.T) {
	e, _, _, _, recorder := newTestEvaluator(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := e.Evaluate(ctx, baseRequest())
	assert.False(t, d.Allow, "FailClosed defaults true")
	assert.Equal(t, InternalError, d.Category)
	assert.Equal(t, 1, recorder.Len())
}

func TestEvaluate_ContextDone_FailOpenWhenConfigured(t *testing.T) {
	e, cache, _, _, _ := newTestEvaluator(time.Now())
	cfg := policyconfig.Default()
	cfg.FailClosed = false
	cache.Install(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := e.Evaluate(ctx, baseRequest())
	assert.True(t, d.Allow)
	assert.Equal(t, InternalError, d.Category)
}

// unavailableStore stands in for an exemption store whose backing state is
// gone mid-request, the StoreUnavailable failure the fail-closed rule covers.
type unavailableStore struct{}

func (unavailableStore) Matches(namespace, resourceName string, now time.Time) *exemption.Exemption {
	panic("exemption store unavailable")
}

func TestEvaluate_StoreUnavailable_FailsClosed(t *testing.T) {
	now := time.Now()
	e, cache, engine, _, recorder := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	e.Exemptions = unavailableStore{}

	d := e.Evaluate(context.Background(), baseRequest())
	assert.False(t, d.Allow)
	assert.Equal(t, InternalError, d.Category)

	events := recorder.List(0)
	require.NotEmpty(t, events)
	assert.Equal(t, history.EvaluatorError, events[0].Type)
}

func TestEvaluate_StoreUnavailable_FailOpenWhenConfigured(t *testing.T) {
	now := time.Now()
	e, cache, engine, _, recorder := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cfg.FailClosed = false
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	e.Exemptions = unavailableStore{}

	d := e.Evaluate(context.Background(), baseRequest())
	assert.True(t, d.Allow)
	assert.Equal(t, InternalError, d.Category)
	assert.Equal(t, 1, recorder.Len(), "EVALUATOR_ERROR must be recorded even when failing open")
}

func TestEvaluate_PrecedenceOrder_AnnotationBeatsUserAllowlistIrrelevant(t *testing.T) {
	// Annotation bypass (step 3) is checked before user allowlist (step 4);
	// verify the annotation alone is sufficient even for a non-allowlisted user.
	now := time.Now()
	e, cache, engine, _, _ := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	req := baseRequest()
	req.User = "unlisted-user"
	req.Annotations = map[string]string{cfg.BypassAnnotationKey: "true"}

	d := e.Evaluate(context.Background(), req)
	assert.True(t, d.Allow)
	assert.Equal(t, BypassAnnotation, d.Category)
}

func TestEvaluate_PrecedenceOrder_NamespaceExemptionBeforeTemporaryExemption(t *testing.T) {
	now := time.Now()
	e, cache, engine, store, recorder := newTestEvaluator(now)
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = true
	cfg.BypassExemptNamespaces = map[string]struct{}{"default": {}}
	cache.Install(cfg)
	s, _ := freezeschedule.NewSchedule("always", "frozen", nil, nil, nil, "* * * * *", "UTC")
	engine.Upsert(s)

	// A temporary exemption exists too, but namespace exemption should win
	// and the store's single-use exemption should remain unconsumed.
	_, err := store.Create("default", "web", 30, "", "")
	require.NoError(t, err)

	req := baseRequest()
	d := e.Evaluate(context.Background(), req)
	assert.Equal(t, BypassNamespace, d.Category)

	list := store.List(true)
	require.Len(t, list, 1)
	assert.False(t, list[0].Used, "temporary exemption must not be consumed when namespace exemption already decided the request")
	_ = recorder
}
