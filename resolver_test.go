package opticks

import (
	"errors"
	"sync"
	"testing"
)

func TestForcedOverrideBeatsEngine(t *testing.T) {
	engine := newFakeEngine()
	engine.features["flagA"] = false
	resolver := newInitialized(t, engine)

	resolver.ApplyForcedOverrides(map[string]Value{"flagA": BoolValue(true)})

	got, err := resolver.ResolveBoolean("flagA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatalf("expected forced true")
	}
	if engine.count("isFeatureEnabled", "flagA") != 0 {
		t.Fatalf("forced resolution must not query the engine")
	}
}

func TestForcedOverrideBeatsCache(t *testing.T) {
	engine := newFakeEngine()
	engine.features["flagA"] = true
	engine.variations["exp"] = "b"
	resolver := newInitialized(t, engine)

	if _, err := resolver.ResolveBoolean("flagA"); err != nil {
		t.Fatalf("warm boolean: %v", err)
	}
	if _, err := resolver.ResolveVariation("exp"); err != nil {
		t.Fatalf("warm variation: %v", err)
	}

	resolver.ApplyForcedOverrides(map[string]Value{
		"flagA": BoolValue(false),
		"exp":   StringValue("c"),
	})

	decision, err := resolver.ResolveBooleanDecision("flagA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Value || decision.Source != SourceForced {
		t.Fatalf("expected forced false, got %+v", decision)
	}
	variation, err := resolver.ResolveVariationDecision("exp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if variation.Value != "c" || variation.Source != SourceForced {
		t.Fatalf("expected forced c, got %+v", variation)
	}
}

func TestForcedKindMismatchUsesDefault(t *testing.T) {
	engine := newFakeEngine()
	engine.features["flagA"] = true
	engine.variations["exp"] = "b"
	resolver := newInitialized(t, engine)

	resolver.ApplyForcedOverrides(map[string]Value{
		"flagA": StringValue("b"),
		"exp":   BoolValue(true),
	})

	boolean, err := resolver.ResolveBooleanDecision("flagA")
	if err != nil {
		t.Fatalf("mismatch must not raise: %v", err)
	}
	if boolean.Value != DefaultBoolean || !boolean.Defaulted || boolean.Source != SourceForced {
		t.Fatalf("expected defaulted false, got %+v", boolean)
	}

	variation, err := resolver.ResolveVariationDecision("exp")
	if err != nil {
		t.Fatalf("mismatch must not raise: %v", err)
	}
	if variation.Value != DefaultVariation || !variation.Defaulted {
		t.Fatalf("expected defaulted a, got %+v", variation)
	}
	if engine.count("isFeatureEnabled", "flagA") != 0 || engine.count("activate", "exp") != 0 {
		t.Fatalf("mismatched overrides must still bypass the engine")
	}
}

func TestRemovingOverrideFallsBackToEngine(t *testing.T) {
	engine := newFakeEngine()
	engine.features["flagA"] = false
	resolver := newInitialized(t, engine)

	resolver.ApplyForcedOverrides(map[string]Value{"flagA": BoolValue(true), "flagB": BoolValue(true)})
	if got, _ := resolver.ResolveBoolean("flagA"); !got {
		t.Fatalf("expected forced true")
	}

	resolver.ApplyForcedOverrides(map[string]Value{"flagA": Unset})

	decision, err := resolver.ResolveBooleanDecision("flagA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Value || decision.Source != SourceEngine {
		t.Fatalf("expected engine false after removal, got %+v", decision)
	}
	if _, ok := resolver.ForcedOverrides()["flagB"]; !ok {
		t.Fatalf("removing one override must keep the others")
	}
}

func TestBooleanQueriesEngineOncePerWindow(t *testing.T) {
	engine := newFakeEngine()
	engine.features["flagA"] = true
	resolver := newInitialized(t, engine)

	for i := 0; i < 5; i++ {
		got, err := resolver.ResolveBoolean("flagA")
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if !got {
			t.Fatalf("resolve %d: expected true", i)
		}
	}
	if n := engine.count("isFeatureEnabled", "flagA"); n != 1 {
		t.Fatalf("expected one engine query, got %d", n)
	}
	if engine.count("activate", "flagA") != 0 {
		t.Fatalf("boolean resolution must never activate")
	}
}

func TestAttributeMergeInvalidatesCache(t *testing.T) {
	engine := newFakeEngine()
	engine.features["flagA"] = true
	resolver := newInitialized(t, engine)

	if got, _ := resolver.ResolveBoolean("flagA"); !got {
		t.Fatalf("expected true")
	}
	if err := resolver.MergeAttributes(Attributes{"plan": "pro"}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	decision, err := resolver.ResolveBooleanDecision("flagA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Source != SourceEngine {
		t.Fatalf("expected re-query after merge, got %s", decision.Source)
	}
	if n := engine.count("isFeatureEnabled", "flagA"); n != 2 {
		t.Fatalf("expected two engine queries, got %d", n)
	}
	if plan := engine.lastCall().attributes["plan"]; plan != "pro" {
		t.Fatalf("expected merged attributes passed to the engine, got %v", plan)
	}
}

func TestContextMutationsInvalidateBothCaches(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Resolver)
	}{
		{name: "set user id", mutate: func(r *Resolver) { r.SetUserID("u2") }},
		{name: "same user id", mutate: func(r *Resolver) { r.SetUserID("u1") }},
		{name: "merge attributes", mutate: func(r *Resolver) { _ = r.MergeAttributes(Attributes{"beta": true}) }},
		{name: "empty merge", mutate: func(r *Resolver) { _ = r.MergeAttributes(nil) }},
		{name: "reset attributes", mutate: func(r *Resolver) { r.ResetAttributes() }},
	}
	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			engine := newFakeEngine()
			engine.features["flagA"] = true
			engine.variations["exp"] = "b"
			resolver := newInitialized(t, engine)

			if _, err := resolver.ResolveBoolean("flagA"); err != nil {
				t.Fatalf("warm: %v", err)
			}
			if _, err := resolver.ResolveVariation("exp"); err != nil {
				t.Fatalf("warm: %v", err)
			}

			tc.mutate(resolver)

			if resolver.cache.len(KindBool) != 0 || resolver.cache.len(KindString) != 0 {
				t.Fatalf("expected both caches cleared")
			}
			boolean, _ := resolver.ResolveBooleanDecision("flagA")
			variation, _ := resolver.ResolveVariationDecision("exp")
			if boolean.Source != SourceEngine || variation.Source != SourceEngine {
				t.Fatalf("expected engine re-query, got %s and %s", boolean.Source, variation.Source)
			}
		})
	}
}

func TestContextMutationsKeepForcedOverrides(t *testing.T) {
	resolver := newInitialized(t, newFakeEngine())
	resolver.ApplyForcedOverrides(map[string]Value{"flagA": BoolValue(true)})

	resolver.SetUserID("u2")
	_ = resolver.MergeAttributes(Attributes{"plan": "pro"})
	resolver.ResetAttributes()

	decision, err := resolver.ResolveBooleanDecision("flagA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Value || decision.Source != SourceForced {
		t.Fatalf("expected override to survive context changes, got %+v", decision)
	}
}

func TestVariationPath(t *testing.T) {
	engine := newFakeEngine()
	engine.variations["exp"] = "b"
	resolver := newInitialized(t, engine)

	var activations int
	if _, err := resolver.AddDecisionListener(func(ActivationEvent) { activations++ }); err != nil {
		t.Fatalf("add listener: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := resolver.ResolveVariation("exp")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if got != "b" {
			t.Fatalf("expected b, got %q", got)
		}
	}
	if n := engine.count("activate", "exp"); n != 1 {
		t.Fatalf("expected one activate call, got %d", n)
	}
	if activations != 1 {
		t.Fatalf("expected one activation notification, got %d", activations)
	}
	if engine.count("isFeatureEnabled", "exp") != 0 {
		t.Fatalf("variation resolution must use activate")
	}
}

func TestVariationEmptyEngineResultDefaults(t *testing.T) {
	engine := newFakeEngine()
	resolver := newInitialized(t, engine)

	decision, err := resolver.ResolveVariationDecision("unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Value != DefaultVariation || decision.Source != SourceEngine {
		t.Fatalf("expected engine default a, got %+v", decision)
	}

	cached, _ := resolver.ResolveVariationDecision("unknown")
	if cached.Value != DefaultVariation || cached.Source != SourceCached {
		t.Fatalf("expected cached default a, got %+v", cached)
	}
	if engine.count("activate", "unknown") != 1 {
		t.Fatalf("expected the defaulted result to be cached")
	}
}

func TestBooleanAndVariationCachesAreIndependent(t *testing.T) {
	engine := newFakeEngine()
	engine.features["shared"] = true
	engine.variations["shared"] = "b"
	resolver := newInitialized(t, engine)

	if got, _ := resolver.ResolveBoolean("shared"); !got {
		t.Fatalf("expected true")
	}
	if got, _ := resolver.ResolveVariation("shared"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if engine.count("isFeatureEnabled", "shared") != 1 || engine.count("activate", "shared") != 1 {
		t.Fatalf("expected each kind to query its own engine call once")
	}
}

func TestMissingIdentityFails(t *testing.T) {
	engine := newFakeEngine()
	resolver := New(WithEngineFactory(engine.factory()))
	if err := resolver.Initialize(nil, nil, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	resolver.ApplyForcedOverrides(map[string]Value{"flagA": BoolValue(true)})

	if _, err := resolver.ResolveBoolean("flagA"); !errors.Is(err, ErrUserIdentityMissing) {
		t.Fatalf("expected ErrUserIdentityMissing, got %v", err)
	}
	if _, err := resolver.ResolveVariation("exp"); !errors.Is(err, ErrUserIdentityMissing) {
		t.Fatalf("expected ErrUserIdentityMissing, got %v", err)
	}

	resolver.SetUserID("")
	if _, err := resolver.ResolveBoolean("flagA"); !errors.Is(err, ErrUserIdentityMissing) {
		t.Fatalf("empty identity must fail, got %v", err)
	}
	if len(engine.calls) != 0 {
		t.Fatalf("engine must not be queried without identity")
	}
}

func TestEngineUnavailable(t *testing.T) {
	resolver := New()
	resolver.SetUserID("u1")

	if _, err := resolver.ResolveBoolean("flagA"); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if _, err := resolver.ResolveVariation("exp"); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if _, err := resolver.AddDecisionListener(func(ActivationEvent) {}); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}

	resolver.ApplyForcedOverrides(map[string]Value{"flagA": BoolValue(true)})
	if got, err := resolver.ResolveBoolean("flagA"); err != nil || !got {
		t.Fatalf("forced values resolve without an engine, got %v %v", got, err)
	}
}

func TestEngineErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("engine exploded")
	engine := newFakeEngine()
	engine.featureErr = boom
	engine.activateErr = boom
	resolver := newInitialized(t, engine)

	if _, err := resolver.ResolveBoolean("flagA"); err != boom {
		t.Fatalf("expected engine error unchanged, got %v", err)
	}
	if _, err := resolver.ResolveVariation("exp"); err != boom {
		t.Fatalf("expected engine error unchanged, got %v", err)
	}

	engine.mu.Lock()
	engine.featureErr = nil
	engine.features["flagA"] = true
	engine.mu.Unlock()
	if got, err := resolver.ResolveBoolean("flagA"); err != nil || !got {
		t.Fatalf("failed queries must not be cached, got %v %v", got, err)
	}
}

func TestStaleEngineResultIsNotCached(t *testing.T) {
	engine := newFakeEngine()
	engine.features["flagA"] = true
	resolver := newInitialized(t, engine)

	mutated := false
	engine.onQuery = func() {
		if !mutated {
			mutated = true
			resolver.SetUserID("u2")
		}
	}

	got, err := resolver.ResolveBoolean("flagA")
	if err != nil || !got {
		t.Fatalf("expected in-flight result returned, got %v %v", got, err)
	}
	if resolver.cache.len(KindBool) != 0 {
		t.Fatalf("result computed for u1 must not be cached after switching to u2")
	}
	decision, _ := resolver.ResolveBooleanDecision("flagA")
	if decision.Source != SourceEngine {
		t.Fatalf("expected re-query for u2, got %s", decision.Source)
	}
	if user := engine.lastCall().userID; user != "u2" {
		t.Fatalf("expected query for u2, got %s", user)
	}
}

func TestConcurrentResolutionAndMutation(t *testing.T) {
	engine := newFakeEngine()
	engine.features["flagA"] = true
	engine.variations["exp"] = "b"
	resolver := newInitialized(t, engine)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := resolver.ResolveBoolean("flagA"); err != nil {
					t.Errorf("resolve boolean: %v", err)
					return
				}
				if _, err := resolver.ResolveVariation("exp"); err != nil {
					t.Errorf("resolve variation: %v", err)
					return
				}
			}
		}()
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = resolver.MergeAttributes(Attributes{"n": i%2 == 0})
				resolver.ApplyForcedOverrides(map[string]Value{"other": BoolValue(true)})
			}
		}(i)
	}
	wg.Wait()
}

func TestMergeAttributesValidation(t *testing.T) {
	resolver := newInitialized(t, newFakeEngine())
	if err := resolver.MergeAttributes(Attributes{"plan": "pro", "beta": true}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := resolver.MergeAttributes(Attributes{"plan": "free", "age": 42}); !errors.Is(err, ErrInvalidAttribute) {
		t.Fatalf("expected ErrInvalidAttribute, got %v", err)
	}
	attrs := resolver.Attributes()
	if attrs["plan"] != "pro" || attrs["beta"] != true {
		t.Fatalf("rejected merge must not change attributes, got %v", attrs)
	}

	if err := resolver.MergeAttributes(Attributes{"plan": "enterprise"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	attrs = resolver.Attributes()
	if attrs["plan"] != "enterprise" || attrs["beta"] != true {
		t.Fatalf("merge must overwrite and retain, got %v", attrs)
	}

	attrs["plan"] = "mutated"
	if resolver.Attributes()["plan"] != "enterprise" {
		t.Fatalf("Attributes must return a copy")
	}

	resolver.ResetAttributes()
	if len(resolver.Attributes()) != 0 {
		t.Fatalf("expected empty attributes after reset")
	}
}

func TestResetClearsSessionState(t *testing.T) {
	engine := newFakeEngine()
	engine.features["flagA"] = true
	resolver := newInitialized(t, engine)
	_ = resolver.MergeAttributes(Attributes{"plan": "pro"})
	resolver.ApplyForcedOverrides(map[string]Value{"flagB": BoolValue(true)})
	_, _ = resolver.ResolveBoolean("flagA")

	resolver.Reset()

	if resolver.UserID() != "" || len(resolver.Attributes()) != 0 || len(resolver.ForcedOverrides()) != 0 {
		t.Fatalf("expected clean session state")
	}
	if resolver.cache.len(KindBool) != 0 {
		t.Fatalf("expected caches cleared")
	}
	resolver.SetUserID("u3")
	if got, err := resolver.ResolveBoolean("flagA"); err != nil || !got {
		t.Fatalf("engine should survive reset, got %v %v", got, err)
	}
}

func TestClearForcedOverrides(t *testing.T) {
	resolver := newInitialized(t, newFakeEngine())
	resolver.ApplyForcedOverrides(map[string]Value{"a": BoolValue(true), "b": StringValue("c")})
	resolver.ClearForcedOverrides()
	if len(resolver.ForcedOverrides()) != 0 {
		t.Fatalf("expected no overrides")
	}
}

func TestResolutionLogger(t *testing.T) {
	var events []ResolutionLogEvent
	engine := newFakeEngine()
	engine.features["flagA"] = true
	resolver := newInitialized(t, engine, WithLogger(ResolutionLoggerFunc(func(event ResolutionLogEvent) {
		events = append(events, event)
	})))

	_, _ = resolver.ResolveBoolean("flagA")
	_, _ = resolver.ResolveBoolean("flagA")
	resolver.SetUserID("")
	_, _ = resolver.ResolveVariation("exp")

	if len(events) != 3 {
		t.Fatalf("expected three log events, got %d", len(events))
	}
	if events[0].Source != SourceEngine || events[1].Source != SourceCached {
		t.Fatalf("unexpected sources: %s %s", events[0].Source, events[1].Source)
	}
	if v, ok := events[1].Value.Bool(); !ok || !v || events[1].UserID != "u1" {
		t.Fatalf("unexpected log payload: %+v", events[1])
	}
	if events[2].Kind != KindString || !errors.Is(events[2].Err, ErrUserIdentityMissing) {
		t.Fatalf("expected logged identity failure, got %+v", events[2])
	}
}
