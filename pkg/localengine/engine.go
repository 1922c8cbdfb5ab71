package localengine

import (
	"context"
	"fmt"
	"time"

	opticks "github.com/goliatone/go-opticks"
	"github.com/goliatone/go-opticks/pkg/rules"
	"github.com/google/uuid"
)

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	strict        bool
	ruleOptions   []rules.Option
	clock         func() time.Time
	dispatchError func(error)
}

// WithFunctionRegistry exposes custom functions to rule expressions.
func WithFunctionRegistry(registry *rules.FunctionRegistry) Option {
	return func(cfg *engineConfig) {
		cfg.ruleOptions = append(cfg.ruleOptions, rules.WithFunctionRegistry(registry))
	}
}

// WithProgramCache shares compiled programs across engines.
func WithProgramCache(cache rules.ProgramCache) Option {
	return func(cfg *engineConfig) {
		cfg.ruleOptions = append(cfg.ruleOptions, rules.WithProgramCache(cache))
	}
}

// WithStrictDefinition rejects definitions carrying undeclared fields.
func WithStrictDefinition() Option {
	return func(cfg *engineConfig) {
		cfg.strict = true
	}
}

// WithClock sets the time source for rule "now" and event stamps.
func WithClock(clock func() time.Time) Option {
	return func(cfg *engineConfig) {
		cfg.clock = clock
	}
}

// WithDispatchErrorHandler receives dispatcher failures. Dispatch errors
// never fail an activation.
func WithDispatchErrorHandler(fn func(error)) Option {
	return func(cfg *engineConfig) {
		cfg.dispatchError = fn
	}
}

// Engine is a rule driven opticks.Engine.
type Engine struct {
	cfg         engineConfig
	features    map[string]compiledFeature
	experiments map[string]compiledExperiment
	dispatcher  opticks.EventDispatcher
	center      *notificationCenter
}

var _ opticks.Engine = (*Engine)(nil)

// New parses and compiles definition.
func New(definition opticks.Definition, dispatcher opticks.EventDispatcher, opts ...Option) (*Engine, error) {
	var probe engineConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&probe)
		}
	}
	doc, err := parse(definition, probe.strict)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, dispatcher, opts...)
}

// FromDocument compiles an already decoded definition.
func FromDocument(doc Document, dispatcher opticks.EventDispatcher, opts ...Option) (*Engine, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	if cfg.dispatchError == nil {
		cfg.dispatchError = func(error) {}
	}
	if dispatcher == nil {
		dispatcher = opticks.NoopDispatcher{}
	}

	evaluator, err := rules.New(doc.Evaluator, cfg.ruleOptions...)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		cfg:         cfg,
		features:    make(map[string]compiledFeature, len(doc.Features)),
		experiments: make(map[string]compiledExperiment, len(doc.Experiments)),
		dispatcher:  dispatcher,
		center:      newNotificationCenter(),
	}
	for _, feature := range doc.Features {
		rule, err := compileRule(evaluator, feature.Rule)
		if err != nil {
			return nil, fmt.Errorf("localengine: feature %q: %w", feature.Key, err)
		}
		engine.features[feature.Key] = compiledFeature{enabled: feature.Enabled, rule: rule}
	}
	for _, experiment := range doc.Experiments {
		audience, err := compileRule(evaluator, experiment.Audience)
		if err != nil {
			return nil, fmt.Errorf("localengine: experiment %q audience: %w", experiment.Key, err)
		}
		compiled := compiledExperiment{audience: audience}
		for _, variation := range experiment.Variations {
			rule, err := compileRule(evaluator, variation.Rule)
			if err != nil {
				return nil, fmt.Errorf("localengine: experiment %q variation %q: %w", experiment.Key, variation.Key, err)
			}
			compiled.variations = append(compiled.variations, compiledVariation{key: variation.Key, rule: rule})
		}
		engine.experiments[experiment.Key] = compiled
	}
	return engine, nil
}

// IsFeatureEnabled reports whether the feature is on for the user. Unknown
// features are off.
func (e *Engine) IsFeatureEnabled(toggleID, userID string, attributes opticks.Attributes) (bool, error) {
	feature, ok := e.features[toggleID]
	if !ok || !feature.enabled {
		return false, nil
	}
	return e.match(feature.rule, toggleID, userID, attributes)
}

// Activate picks the variation for the user, dispatches an impression and
// notifies activation listeners. It returns "" without side effects for
// unknown experiments, users outside the audience and unmatched variations.
func (e *Engine) Activate(toggleID, userID string, attributes opticks.Attributes) (string, error) {
	experiment, ok := e.experiments[toggleID]
	if !ok {
		return "", nil
	}
	inAudience, err := e.match(experiment.audience, toggleID, userID, attributes)
	if err != nil || !inAudience {
		return "", err
	}
	for _, variation := range experiment.variations {
		matched, err := e.match(variation.rule, toggleID, userID, attributes)
		if err != nil {
			return "", err
		}
		if matched {
			e.activate(toggleID, userID, attributes, variation.key)
			return variation.key, nil
		}
	}
	return "", nil
}

// NotificationCenter implements opticks.Engine.
func (e *Engine) NotificationCenter() opticks.NotificationCenter {
	return e.center
}

func (e *Engine) match(rule rules.CompiledRule, toggleID, userID string, attributes opticks.Attributes) (bool, error) {
	if rule == nil {
		return true, nil
	}
	now := e.cfg.clock()
	return rules.Match(rule, rules.RuleContext{
		ToggleID:   toggleID,
		UserID:     userID,
		Attributes: map[string]any(attributes.Clone()),
		Now:        &now,
	})
}

func (e *Engine) activate(toggleID, userID string, attributes opticks.Attributes, variation string) {
	now := e.cfg.clock()
	impression := opticks.ImpressionEvent{
		ID:         uuid.NewString(),
		ToggleID:   toggleID,
		UserID:     userID,
		Variation:  variation,
		Attributes: attributes.Clone(),
		OccurredAt: now,
	}
	if err := e.dispatcher.DispatchEvent(context.Background(), impression); err != nil {
		e.cfg.dispatchError(fmt.Errorf("localengine: dispatch %s: %w", impression.ID, err))
	}
	e.center.fire(opticks.NotificationActivate, opticks.ActivationEvent{
		ToggleID:   toggleID,
		UserID:     userID,
		Attributes: attributes.Clone(),
		Variation:  variation,
		OccurredAt: now,
	})
}
