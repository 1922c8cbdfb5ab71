package opticks_test

import (
	"context"
	"sync"
	"testing"

	opticks "github.com/goliatone/go-opticks"
	"github.com/goliatone/go-opticks/pkg/localengine"
)

const storefront = `{
  "features": [
    {"key": "new_checkout", "enabled": true, "rule": "plan == \"pro\""}
  ],
  "experiments": [
    {"key": "banner", "variations": [
      {"key": "b", "rule": "country == \"es\""}
    ]}
  ]
}`

type recordingDispatcher struct {
	mu     sync.Mutex
	events []opticks.ImpressionEvent
}

func (d *recordingDispatcher) DispatchEvent(_ context.Context, event opticks.ImpressionEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func TestResolverWithLocalEngine(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	resolver := opticks.New(opticks.WithEngineFactory(localengine.NewFactory()))

	var decisions []opticks.ActivationEvent
	if err := resolver.Initialize(opticks.Definition(storefront), func(event opticks.ActivationEvent) {
		decisions = append(decisions, event)
	}, dispatcher); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	resolver.SetUserID("u1")
	if err := resolver.MergeAttributes(opticks.Attributes{"plan": "free", "country": "es"}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	enabled, err := resolver.ResolveBoolean("new_checkout")
	if err != nil || enabled {
		t.Fatalf("free plan should not see new_checkout, got %v %v", enabled, err)
	}
	if err := resolver.MergeAttributes(opticks.Attributes{"plan": "pro"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	enabled, err = resolver.ResolveBoolean("new_checkout")
	if err != nil || !enabled {
		t.Fatalf("pro plan should see new_checkout, got %v %v", enabled, err)
	}

	variation, err := resolver.ResolveVariation("banner")
	if err != nil || variation != "b" {
		t.Fatalf("expected banner b, got %q %v", variation, err)
	}
	_, _ = resolver.ResolveVariation("banner")
	if len(decisions) != 1 || decisions[0].Variation != "b" {
		t.Fatalf("expected one forwarded activation, got %+v", decisions)
	}
	if len(dispatcher.events) != 1 || dispatcher.events[0].ToggleID != "banner" {
		t.Fatalf("expected one impression through the host dispatcher, got %+v", dispatcher.events)
	}

	_ = resolver.MergeAttributes(opticks.Attributes{"country": "fr"})
	variation, err = resolver.ResolveVariation("banner")
	if err != nil || variation != opticks.DefaultVariation {
		t.Fatalf("expected default variation without a match, got %q %v", variation, err)
	}
	if len(decisions) != 1 {
		t.Fatalf("no variation means no activation, got %d", len(decisions))
	}

	resolver.ApplyForcedOverrides(map[string]opticks.Value{"banner": opticks.StringValue("c")})
	if variation, _ = resolver.ResolveVariation("banner"); variation != "c" {
		t.Fatalf("expected forced c, got %q", variation)
	}
}
