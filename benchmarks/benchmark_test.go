package benchmarks

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/OrlandoBitencourt/pennant"
	"github.com/OrlandoBitencourt/pennant/internal/bucket"
	"github.com/OrlandoBitencourt/pennant/internal/codec"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/evaluator"
	"github.com/OrlandoBitencourt/pennant/internal/logging"
	"github.com/OrlandoBitencourt/pennant/internal/predicate"
)

const namespace = "bench"

// BenchmarkResolve_Simple benchmarks a flag with one unconstrained rule
func BenchmarkResolve_Simple(b *testing.B) {
	def := simpleBooleanFlag(b)
	evalCtx := domain.NewContext("user-123")

	b.ResetTimer()
	for b.Loop() {
		_ = evaluator.Resolve(def, true, evalCtx)
	}
}

// BenchmarkResolve_WithTargeting benchmarks rule matching across every dimension
func BenchmarkResolve_WithTargeting(b *testing.B) {
	def := flagWithTargeting(b)
	evalCtx := domain.NewContext("user-123").
		WithLocale("pt-BR").
		WithPlatform("ios").
		WithVersion(domain.NewVersion(2, 4, 0)).
		WithAxis("tier", "premium")

	b.ResetTimer()
	for b.Loop() {
		_ = evaluator.Resolve(def, true, evalCtx)
	}
}

// BenchmarkResolve_ManyRules benchmarks a miss that walks every rule
func BenchmarkResolve_ManyRules(b *testing.B) {
	def := flagWithManyRules(b, 50)
	evalCtx := domain.NewContext("user-123").WithPlatform("web")

	b.ResetTimer()
	for b.Loop() {
		_ = evaluator.Resolve(def, true, evalCtx)
	}
}

// BenchmarkResolve_CustomPredicate benchmarks an expr predicate
func BenchmarkResolve_CustomPredicate(b *testing.B) {
	pred, err := predicate.New(`platform == "ios" && version.major >= 2 && "beta" in axes["cohort"]`, 1)
	if err != nil {
		b.Fatal(err)
	}
	def := mustFlag(b, "custom", false, mustRule(b, true, domain.Custom(pred)))
	evalCtx := domain.NewContext("user-123").
		WithPlatform("ios").
		WithVersion(domain.NewVersion(2, 0, 0)).
		WithAxis("cohort", "beta")

	b.ResetTimer()
	for b.Loop() {
		_ = evaluator.Resolve(def, true, evalCtx)
	}
}

// BenchmarkBucket benchmarks the SHA-256 bucket derivation
func BenchmarkBucket(b *testing.B) {
	for b.Loop() {
		_ = bucket.Bucket("v1", "new-cart", "user-123")
	}
}

// BenchmarkEngine_Bool benchmarks the public typed helper
func BenchmarkEngine_Bool(b *testing.B) {
	e := setupEngine(b, 1)
	ctx := context.Background()
	id := pennant.NewToggleID(namespace, "flag-0")
	evalCtx := pennant.NewContext("user-123").WithPlatform("ios")

	b.ResetTimer()
	for b.Loop() {
		_ = e.Bool(ctx, id, evalCtx, false)
	}
}

// BenchmarkEngine_Explain benchmarks the full decision path
func BenchmarkEngine_Explain(b *testing.B) {
	e := setupEngine(b, 1)
	ctx := context.Background()
	id := pennant.NewToggleID(namespace, "flag-0")
	evalCtx := pennant.NewContext("user-123").WithPlatform("ios")

	b.ResetTimer()
	for b.Loop() {
		_, _ = e.Explain(ctx, id, evalCtx)
	}
}

// BenchmarkConcurrentEvaluations benchmarks parallel readers of one snapshot
func BenchmarkConcurrentEvaluations(b *testing.B) {
	e := setupEngine(b, 100)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			id := pennant.NewToggleID(namespace, fmt.Sprintf("flag-%d", i%100))
			evalCtx := pennant.NewContext(pennant.StableID(fmt.Sprintf("user-%d", i)))
			_ = e.Bool(ctx, id, evalCtx, false)
			i++
		}
	})
}

// BenchmarkDecode_1000Flags benchmarks decoding a large payload
func BenchmarkDecode_1000Flags(b *testing.B) {
	payload := []byte(largePayload(1000))
	c := codec.New(namespace)

	b.ResetTimer()
	for b.Loop() {
		if _, err := c.Decode(payload); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLoad_1000Flags benchmarks decode plus atomic swap
func BenchmarkLoad_1000Flags(b *testing.B) {
	e := setupEngine(b, 0)
	payload := []byte(largePayload(1000))
	ctx := context.Background()

	b.ResetTimer()
	for b.Loop() {
		if _, err := e.LoadPayload(ctx, namespace, payload); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEncode_1000Flags benchmarks deterministic encoding
func BenchmarkEncode_1000Flags(b *testing.B) {
	c := codec.New(namespace)
	s, err := c.Decode([]byte(largePayload(1000)))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for b.Loop() {
		if _, err := c.Encode(s); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMemoryAllocation reports allocations per evaluation
func BenchmarkMemoryAllocation(b *testing.B) {
	def := flagWithTargeting(b)
	evalCtx := domain.NewContext("user-123").WithPlatform("ios")

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		_ = evaluator.Resolve(def, true, evalCtx)
	}
}

// Helper functions

func setupEngine(b *testing.B, flags int) *pennant.Engine {
	b.Helper()

	e, err := pennant.New(pennant.WithLogger(logging.Discard()))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = e.Close(context.Background()) })

	if err := e.Namespace(namespace); err != nil {
		b.Fatal(err)
	}
	if flags > 0 {
		if _, err := e.LoadPayload(context.Background(), namespace, []byte(largePayload(flags))); err != nil {
			b.Fatal(err)
		}
	}
	return e
}

func largePayload(n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `{"schemaVersion": 1, "namespace": %q, "flags": [`, namespace)
	for i := range n {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"key": "flag-%d", "type": "boolean", "default": false, "rules": [`+
			`{"value": true, "platforms": ["ios"], "rollout": 50},`+
			`{"value": true, "locales": ["en-US"], "axes": {"tier": ["premium"]}}]}`, i)
	}
	sb.WriteString("]}")
	return sb.String()
}

func mustRule(b *testing.B, value any, opts ...domain.TargetingOption) domain.Rule {
	b.Helper()
	r, err := domain.NewRule(value, domain.NewTargeting(opts...))
	if err != nil {
		b.Fatal(err)
	}
	return r
}

func mustFlag(b *testing.B, key string, def bool, rules ...domain.Rule) *domain.FlagDefinition {
	b.Helper()
	f, err := domain.NewFlagDefinition(domain.NewToggleID(namespace, key), domain.BoolType(), def, domain.WithRules(rules...))
	if err != nil {
		b.Fatal(err)
	}
	return f
}

func simpleBooleanFlag(b *testing.B) *domain.FlagDefinition {
	return mustFlag(b, "simple", false, mustRule(b, true))
}

func flagWithTargeting(b *testing.B) *domain.FlagDefinition {
	return mustFlag(b, "targeted", false,
		mustRule(b, true,
			domain.Locales("pt-BR", "en-US"),
			domain.Platforms("ios", "android"),
			domain.Versions(domain.AtLeast(domain.NewVersion(2, 0, 0))),
			domain.AxisIn("tier", "premium", "gold"),
		),
		mustRule(b, true, domain.Platforms("ios")),
	)
}

func flagWithManyRules(b *testing.B, n int) *domain.FlagDefinition {
	rules := make([]domain.Rule, n)
	for i := range rules {
		rules[i] = mustRule(b, true, domain.Platforms(fmt.Sprintf("platform-%d", i)))
	}
	return mustFlag(b, "many", false, rules...)
}
