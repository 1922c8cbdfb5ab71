package opticks

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Default values substituted when a forced or cached value has the wrong kind
// and when the engine returns no variation.
const (
	DefaultBoolean   = false
	DefaultVariation = "a"
)

// Resolver answers toggle queries for one identity and attribute context at
// a time. Forced overrides win over cached decisions, which win over a fresh
// engine query. A single mutex guards identity, attributes, overrides and
// caches as one unit.
type Resolver struct {
	mu        sync.Mutex
	cfg       resolverConfig
	factory   EngineFactory
	engine    Engine
	relay     Subscription
	context   contextStore
	overrides overrideRegistry
	cache     decisionCache
	inflight  singleflight.Group
}

// New constructs a Resolver with no identity, empty attributes and no engine.
func New(opts ...Option) *Resolver {
	cfg := applyOptions(opts)
	return &Resolver{
		cfg:       cfg,
		factory:   cfg.factory,
		context:   newContextStore(),
		overrides: newOverrideRegistry(),
		cache:     newDecisionCache(),
	}
}

// RegisterEngineFactory sets the factory used by the next Initialize call.
func (r *Resolver) RegisterEngineFactory(factory EngineFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factory = factory
}

// Reset clears identity, attributes, forced overrides and both caches. The
// engine and its listeners are kept.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.context.setUserID("")
	r.context.reset()
	r.overrides.clear()
	r.cache.clear()
}

// ResolveBoolean returns the boolean decision for toggleID. The engine is
// queried with IsFeatureEnabled, which never fires activation.
func (r *Resolver) ResolveBoolean(toggleID string) (bool, error) {
	decision, err := r.ResolveBooleanDecision(toggleID)
	return decision.Value, err
}

// ResolveVariation returns the variation key for toggleID. A miss calls
// Engine.Activate, which fires the activation notification once per query.
func (r *Resolver) ResolveVariation(toggleID string) (string, error) {
	decision, err := r.ResolveVariationDecision(toggleID)
	return decision.Value, err
}

// ResolveBooleanDecision is ResolveBoolean with source details.
func (r *Resolver) ResolveBooleanDecision(toggleID string) (Decision[bool], error) {
	value, source, defaulted, err := r.resolve(KindBool, toggleID)
	b, _ := value.Bool()
	if err != nil {
		b = DefaultBoolean
	}
	return Decision[bool]{ToggleID: toggleID, Value: b, Source: source, Defaulted: defaulted}, err
}

// ResolveVariationDecision is ResolveVariation with source details.
func (r *Resolver) ResolveVariationDecision(toggleID string) (Decision[string], error) {
	value, source, defaulted, err := r.resolve(KindString, toggleID)
	s, _ := value.Variation()
	if err != nil {
		s = ""
	}
	return Decision[string]{ToggleID: toggleID, Value: s, Source: source, Defaulted: defaulted}, err
}

func (r *Resolver) resolve(kind Kind, toggleID string) (value Value, source Source, defaulted bool, err error) {
	start := r.cfg.clock()
	var userID string
	defer func() {
		r.cfg.logger.LogResolution(ResolutionLogEvent{
			Kind:      kind,
			ToggleID:  toggleID,
			UserID:    userID,
			Source:    source,
			Value:     value,
			Defaulted: defaulted,
			Duration:  r.cfg.clock().Sub(start),
			Err:       err,
		})
	}()

	r.mu.Lock()
	userID = r.context.userID
	if userID == "" {
		r.mu.Unlock()
		return Unset, SourceNone, false, ErrUserIdentityMissing
	}
	if forced, ok := r.overrides.get(toggleID); ok {
		r.mu.Unlock()
		value, defaulted = coerce(kind, forced)
		return value, SourceForced, defaulted, nil
	}
	if cached, ok := r.cache.get(kind, toggleID); ok {
		r.mu.Unlock()
		value, defaulted = coerce(kind, cached)
		return value, SourceCached, defaulted, nil
	}
	engine := r.engine
	if engine == nil {
		r.mu.Unlock()
		return Unset, SourceNone, false, ErrEngineUnavailable
	}
	generation := r.context.generation
	attributes := r.context.attributes.Clone()
	r.mu.Unlock()

	// The engine runs outside the lock so activation listeners may call back
	// into the resolver. The generation check drops results computed for a
	// context that has since changed.
	if kind == KindString {
		// Every variation miss activates once, and listeners may re-enter
		// for the same toggle, so misses are never shared.
		fresh, err := r.fetch(engine, kind, toggleID, userID, attributes, generation)
		if err != nil {
			return Unset, SourceEngine, false, err
		}
		return fresh, SourceEngine, false, nil
	}
	key := kind.String() + "|" + strconv.FormatUint(generation, 10) + "|" + toggleID
	result, err, _ := r.inflight.Do(key, func() (any, error) {
		return r.fetch(engine, kind, toggleID, userID, attributes, generation)
	})
	if err != nil {
		return Unset, SourceEngine, false, err
	}
	return result.(Value), SourceEngine, false, nil
}

// fetch queries the engine and caches the result unless the context moved on.
func (r *Resolver) fetch(engine Engine, kind Kind, toggleID, userID string, attributes Attributes, generation uint64) (Value, error) {
	fresh, err := query(engine, kind, toggleID, userID, attributes)
	if err != nil {
		return Unset, err
	}
	r.mu.Lock()
	if r.context.generation == generation {
		r.cache.set(kind, toggleID, fresh)
	}
	r.mu.Unlock()
	return fresh, nil
}

func query(engine Engine, kind Kind, toggleID, userID string, attributes Attributes) (Value, error) {
	if kind == KindBool {
		enabled, err := engine.IsFeatureEnabled(toggleID, userID, attributes)
		if err != nil {
			return Unset, err
		}
		return BoolValue(enabled), nil
	}
	variation, err := engine.Activate(toggleID, userID, attributes)
	if err != nil {
		return Unset, err
	}
	if variation == "" {
		variation = DefaultVariation
	}
	return StringValue(variation), nil
}

// coerce substitutes the per-kind default when stored has the wrong kind.
func coerce(kind Kind, stored Value) (Value, bool) {
	if stored.Kind() == kind {
		return stored, false
	}
	if kind == KindBool {
		return BoolValue(DefaultBoolean), true
	}
	return StringValue(DefaultVariation), true
}
