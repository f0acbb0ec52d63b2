package pennant

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/pennant/internal/logging"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

const checkoutPayload = `{
  "schemaVersion": 1,
  "namespace": "checkout",
  "version": "r1",
  "flags": [
    {
      "key": "new-cart",
      "type": "boolean",
      "default": false,
      "rules": [
        {"value": true, "platforms": ["ios"], "rollout": 50}
      ]
    },
    {
      "key": "theme",
      "type": "enum",
      "enum": ["light", "dark"],
      "default": "light",
      "rules": [
        {"value": "dark", "locales": ["en-US"], "version": {"kind": "min", "min": "2.0"}}
      ]
    },
    {"key": "retries", "type": "integer", "default": 3},
    {"key": "ratio", "type": "float", "default": 0.25}
  ]
}`

type banner struct {
	Title string `json:"title"`
}

// recordingProvider counts load outcomes.
type recordingProvider struct {
	telemetry.NoOpProvider

	mu        sync.Mutex
	loads     map[bool]int
	killState map[string]bool
	evals     int
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{loads: map[bool]int{}, killState: map[string]bool{}}
}

func (p *recordingProvider) RecordLoad(_ context.Context, _, _ string, success bool, _ time.Duration, _ int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads[success]++
}

func (p *recordingProvider) RecordKillSwitch(_ context.Context, ns string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killState[ns] = enabled
}

func (p *recordingProvider) RecordEvaluation(context.Context, string, string, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals++
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	e, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func loadedEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := newTestEngine(t, opts...)
	require.NoError(t, e.Namespace("checkout"))
	_, err := e.LoadPayload(t.Context(), "checkout", []byte(checkoutPayload))
	require.NoError(t, err)
	return e
}

func toggle(key string) ToggleID { return NewToggleID("checkout", key) }

func TestEngine_Namespace(t *testing.T) {
	e := newTestEngine(t)

	assert.Error(t, e.Namespace(""))
	require.NoError(t, e.Namespace("search"))
	require.NoError(t, e.Namespace("checkout"))
	require.NoError(t, e.Namespace("checkout"), "re-registering is a no-op")
	assert.Error(t, e.Namespace("checkout", Declare("x", BoolType())))

	assert.Equal(t, []string{"checkout", "search"}, e.Namespaces())

	s, err := e.Snapshot("checkout")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	_, err = e.Snapshot("missing")
	assert.True(t, IsNotFound(err))
}

func TestEngine_Explain(t *testing.T) {
	e := loadedEngine(t)
	ctx := t.Context()

	en := NewContext("u1").WithLocale("en-US").WithVersion(NewVersion(2, 1, 0))
	d, err := e.Explain(ctx, toggle("theme"), en)
	require.NoError(t, err)
	assert.Equal(t, DecisionRule, d.Kind)
	assert.Equal(t, "dark", d.Value)
	require.NotNil(t, d.Rule)
	assert.Equal(t, 3, d.Rule.Specificity)

	d, err = e.Explain(ctx, toggle("theme"), en.WithVersion(NewVersion(1, 9, 0)))
	require.NoError(t, err)
	assert.Equal(t, DecisionDefault, d.Kind)
	assert.Equal(t, "light", d.Value)

	_, err = e.Explain(ctx, toggle("missing"), en)
	assert.True(t, IsNotFound(err))

	_, err = e.Explain(ctx, NewToggleID("nowhere", "theme"), en)
	assert.True(t, IsNotFound(err))
}

func TestEngine_Evaluate(t *testing.T) {
	e := loadedEngine(t)

	v, err := e.Evaluate(t.Context(), toggle("retries"), NewContext("u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = e.Evaluate(t.Context(), toggle("missing"), NewContext("u1"))
	assert.True(t, IsNotFound(err))
}

func TestEngine_TypedHelpers(t *testing.T) {
	e := loadedEngine(t)
	ctx := t.Context()
	evalCtx := NewContext("u1").WithPlatform("android")

	assert.False(t, e.Bool(ctx, toggle("new-cart"), evalCtx, true))
	assert.True(t, e.Bool(ctx, toggle("missing"), evalCtx, true))
	assert.Equal(t, "light", e.String(ctx, toggle("theme"), evalCtx, "x"))
	assert.Equal(t, int64(3), e.Int(ctx, toggle("retries"), evalCtx, 9))
	assert.Equal(t, 0.25, e.Float(ctx, toggle("ratio"), evalCtx, 1))
	assert.Equal(t, 1.0, e.Float(ctx, toggle("missing"), evalCtx, 1))

	n, err := Value[int64](ctx, e, toggle("retries"), evalCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = Value[int64](ctx, e, toggle("missing"), evalCtx)
	assert.True(t, IsNotFound(err))
}

func TestEngine_TypeMismatchPanics(t *testing.T) {
	e := loadedEngine(t)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*TypeMismatchError)
		require.True(t, ok, "panic value %T", r)
		assert.Equal(t, toggle("retries"), err.Toggle)
		assert.Equal(t, "int", err.Wanted)
	}()
	_, _ = Value[int](t.Context(), e, toggle("retries"), NewContext("u1"))
}

func TestEngine_FiftyPercentRollout(t *testing.T) {
	e := loadedEngine(t)
	ctx := t.Context()

	on := 0
	const n = 5_000
	for range n {
		id := HashedStableID(uuid.NewString())
		if e.Bool(ctx, toggle("new-cart"), NewContext(id).WithPlatform("ios"), false) {
			on++
		}
		assert.False(t, e.Bool(ctx, toggle("new-cart"), NewContext(id).WithPlatform("web"), true))
	}
	assert.InDelta(t, 50.0, float64(on)*100/n, 3)
}

func TestEngine_BadPayloadKeepsSnapshot(t *testing.T) {
	rec := newRecordingProvider()
	e := loadedEngine(t, WithTelemetry(rec))
	ctx := t.Context()

	before, err := e.Snapshot("checkout")
	require.NoError(t, err)

	bad := []string{
		`{`,
		`{"schemaVersion": 1, "namespace": "checkout", "flags": [{"key": "a", "type": "boolean", "default": "no"}]}`,
		`{"schemaVersion": 1, "namespace": "search", "flags": []}`,
		`{"schemaVersion": 1, "namespace": "checkout", "flags": [{"key": "a", "type": "money", "default": 1}]}`,
	}
	for i, payload := range bad {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := e.LoadPayload(ctx, "checkout", []byte(payload))
			assert.True(t, IsBoundaryError(err), "%v", err)

			after, err := e.Snapshot("checkout")
			require.NoError(t, err)
			assert.Same(t, before, after)
		})
	}

	_, err = e.PatchPayload(ctx, "checkout", []byte(`{"schemaVersion": 1, "namespace": "checkout", "flags": [], "removeKeys": ["a", "a"]}`))
	assert.True(t, IsBoundaryError(err))

	after, err := e.Snapshot("checkout")
	require.NoError(t, err)
	assert.Same(t, before, after)

	assert.Equal(t, 1, rec.loads[true])
	assert.Equal(t, len(bad)+1, rec.loads[false])
}

func TestEngine_PatchAndRollback(t *testing.T) {
	e := loadedEngine(t)
	ctx := t.Context()

	entry, err := e.PatchPayload(ctx, "checkout", []byte(`{
		"schemaVersion": 1,
		"namespace": "checkout",
		"version": "r2",
		"flags": [{"key": "retries", "type": "integer", "default": 5}],
		"removeKeys": ["ratio"]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "r2", entry.Version)
	assert.Equal(t, 3, entry.FeatureCount)
	assert.Equal(t, int64(5), e.Int(ctx, toggle("retries"), NewContext("u1"), 0))

	history, err := e.History("checkout")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "r1", history[0].Version)

	entry, err = e.Rollback(ctx, "checkout", 1)
	require.NoError(t, err)
	assert.Equal(t, "r1", entry.Version)
	assert.Equal(t, int64(3), e.Int(ctx, toggle("retries"), NewContext("u1"), 0))
	assert.Equal(t, 0.25, e.Float(ctx, toggle("ratio"), NewContext("u1"), 0))

	_, err = e.Rollback(ctx, "checkout", 5)
	assert.ErrorIs(t, err, ErrRollbackUnavailable)

	_, err = e.Rollback(ctx, "missing", 1)
	assert.True(t, IsNotFound(err))
}

func TestEngine_KillSwitch(t *testing.T) {
	rec := newRecordingProvider()
	e := loadedEngine(t, WithTelemetry(rec))
	ctx := t.Context()
	en := NewContext("u1").WithLocale("en-US").WithVersion(NewVersion(3, 0, 0))

	require.NoError(t, e.DisableAll(ctx, "checkout"))
	enabled, err := e.Enabled("checkout")
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.False(t, rec.killState["checkout"])

	d, err := e.Explain(ctx, toggle("theme"), en)
	require.NoError(t, err)
	assert.Equal(t, DecisionRegistryDisabled, d.Kind)
	assert.Equal(t, "light", d.Value)

	require.NoError(t, e.EnableAll(ctx, "checkout"))
	assert.True(t, rec.killState["checkout"])
	assert.Equal(t, "dark", e.String(ctx, toggle("theme"), en, ""))

	assert.True(t, IsNotFound(e.DisableAll(ctx, "missing")))
	_, err = e.Enabled("missing")
	assert.True(t, IsNotFound(err))
}

func TestEngine_LoadInCode(t *testing.T) {
	e := newTestEngine(t)
	ctx := t.Context()
	require.NoError(t, e.Namespace("search"))

	pred, err := e.Expression(`"beta" in axes["cohort"]`, 2)
	require.NoError(t, err)

	rule, err := NewRule("fuzzy", NewTargeting(Custom(pred)), WithNote("beta cohort"))
	require.NoError(t, err)
	def, err := NewFlagDefinition(NewToggleID("search", "ranker"), StringType(), "classic", WithRules(rule))
	require.NoError(t, err)
	s, err := NewSnapshot("search", "code-1", def)
	require.NoError(t, err)

	_, err = e.Load(ctx, s)
	require.NoError(t, err)

	id := NewToggleID("search", "ranker")
	assert.Equal(t, "fuzzy", e.String(ctx, id, NewContext("u").WithAxis("cohort", "beta"), ""))
	assert.Equal(t, "classic", e.String(ctx, id, NewContext("u"), ""))

	encoded, err := e.EncodeSnapshot("search")
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"expr": "\"beta\" in axes[\"cohort\"]"`)

	_, err = e.Expression(`nope ==`, 1)
	assert.Error(t, err)

	_, err = e.Load(ctx, nil)
	assert.Error(t, err)

	_, err = e.Patch(ctx, "search", Patch{Removals: []ToggleID{id}})
	require.NoError(t, err)
	_, err = e.Evaluate(ctx, id, NewContext("u"))
	assert.True(t, IsNotFound(err))
}

func TestEngine_CustomValueCodec(t *testing.T) {
	e := newTestEngine(t, WithValueCodec("banner", JSONCodec[banner]()))
	ctx := t.Context()
	require.NoError(t, e.Namespace("promo"))

	_, err := e.LoadPayload(ctx, "promo", []byte(`{
		"schemaVersion": 1,
		"namespace": "promo",
		"flags": [{
			"key": "hero",
			"type": "custom",
			"tag": "banner",
			"default": {"title": "Welcome"},
			"rules": [{"value": {"title": "Sale"}, "platforms": ["web"]}]
		}]
	}`))
	require.NoError(t, err)

	id := NewToggleID("promo", "hero")
	hero, err := Value[banner](ctx, e, id, NewContext("u").WithPlatform("web"))
	require.NoError(t, err)
	assert.Equal(t, banner{Title: "Sale"}, hero)

	hero, err = Value[banner](ctx, e, id, NewContext("u"))
	require.NoError(t, err)
	assert.Equal(t, banner{Title: "Welcome"}, hero)
}

func TestEngine_UnregisteredCodec(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Namespace("promo"))

	_, err := e.LoadPayload(t.Context(), "promo", []byte(`{
		"schemaVersion": 1,
		"namespace": "promo",
		"flags": [{"key": "hero", "type": "custom", "tag": "banner", "default": {}}]
	}`))
	be, ok := AsBoundaryError(err)
	require.True(t, ok)
	assert.Equal(t, UnregisteredCodec, be.Kind)
}

func TestEngine_Declarations(t *testing.T) {
	payload := []byte(`{
		"schemaVersion": 1,
		"namespace": "checkout",
		"flags": [
			{"key": "new-cart", "type": "boolean", "default": true},
			{"key": "stray", "type": "boolean", "default": true}
		]
	}`)

	strict := newTestEngine(t)
	require.NoError(t, strict.Namespace("checkout", Declare("new-cart", BoolType())))
	_, err := strict.LoadPayload(t.Context(), "checkout", payload)
	be, ok := AsBoundaryError(err)
	require.True(t, ok)
	assert.Equal(t, UnknownToggle, be.Kind)

	lenient := newTestEngine(t, WithUnknownKeyPolicy(IgnoreUnknown))
	require.NoError(t, lenient.Namespace("checkout", Declare("new-cart", BoolType())))
	entry, err := lenient.LoadPayload(t.Context(), "checkout", payload)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.FeatureCount)

	mismatch := newTestEngine(t)
	require.NoError(t, mismatch.Namespace("checkout", Declare("new-cart", StringType()), Declare("stray", BoolType())))
	_, err = mismatch.LoadPayload(t.Context(), "checkout", payload)
	be, ok = AsBoundaryError(err)
	require.True(t, ok)
	assert.Equal(t, InvalidValue, be.Kind)
}

func TestEngine_DeclarationsApplyToCodeLoads(t *testing.T) {
	e := newTestEngine(t)
	ctx := t.Context()
	require.NoError(t, e.Namespace("checkout", Declare("new-cart", BoolType())))

	wrongType, err := NewFlagDefinition(NewToggleID("checkout", "new-cart"), StringType(), "on")
	require.NoError(t, err)
	s, err := NewSnapshot("checkout", "code-1", wrongType)
	require.NoError(t, err)

	_, err = e.Load(ctx, s)
	be, ok := AsBoundaryError(err)
	require.True(t, ok, "expected boundary error, got %v", err)
	assert.Equal(t, InvalidValue, be.Kind)

	stray, err := NewFlagDefinition(NewToggleID("checkout", "stray"), BoolType(), true)
	require.NoError(t, err)
	_, err = e.Patch(ctx, "checkout", Patch{Upserts: []*FlagDefinition{stray}})
	be, ok = AsBoundaryError(err)
	require.True(t, ok, "expected boundary error, got %v", err)
	assert.Equal(t, UnknownToggle, be.Kind)

	good, err := NewFlagDefinition(NewToggleID("checkout", "new-cart"), BoolType(), true)
	require.NoError(t, err)
	s, err = NewSnapshot("checkout", "code-2", good)
	require.NoError(t, err)
	_, err = e.Load(ctx, s)
	require.NoError(t, err)
	assert.True(t, e.Bool(ctx, NewToggleID("checkout", "new-cart"), NewContext("u"), false))
}

func TestEngine_YAML(t *testing.T) {
	e := newTestEngine(t)
	ctx := t.Context()
	require.NoError(t, e.Namespace("checkout"))

	_, err := e.LoadYAML(ctx, "checkout", []byte(`
schemaVersion: 1
namespace: checkout
flags:
  - key: retries
    type: integer
    default: 2
`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Int(ctx, toggle("retries"), NewContext("u"), 0))

	_, err = e.PatchYAML(ctx, "checkout", []byte(`
schemaVersion: 1
namespace: checkout
flags: []
removeKeys: [retries]
`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.Int(ctx, toggle("retries"), NewContext("u"), 7))
}

func TestEngine_Analyze(t *testing.T) {
	e := loadedEngine(t)

	a, err := e.Analyze("checkout", "theme")
	require.NoError(t, err)
	require.Len(t, a.Rules, 1)
	assert.Equal(t, 3, a.Rules[0].Specificity)

	_, err = e.Analyze("checkout", "missing")
	assert.True(t, IsNotFound(err))
	_, err = e.Analyze("missing", "theme")
	assert.True(t, IsNotFound(err))
}

func TestEngine_ConcurrentEvaluateAndLoad(t *testing.T) {
	e := loadedEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				v, err := e.Evaluate(ctx, toggle("retries"), NewContext("u"))
				if assert.NoError(t, err) {
					assert.Contains(t, []any{int64(3), int64(4)}, v)
				}
			}
		}()
	}

	alt := []byte(`{"schemaVersion": 1, "namespace": "checkout", "flags": [{"key": "retries", "type": "integer", "default": 4}]}`)
	for i := range 100 {
		payload := []byte(checkoutPayload)
		if i%2 == 0 {
			payload = alt
		}
		_, err := e.LoadPayload(ctx, "checkout", payload)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
