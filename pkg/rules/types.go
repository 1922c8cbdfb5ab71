package rules

import (
	"sync"
	"time"
)

// RuleContext carries the inputs a rule predicate is evaluated against.
type RuleContext struct {
	ToggleID   string
	UserID     string
	Attributes map[string]any
	Now        *time.Time
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Attributes == nil {
		ctx.Attributes = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx RuleContext) label() string {
	if ctx.ToggleID != "" {
		return ctx.ToggleID
	}
	return "unknown"
}

// bindings returns the variables exposed to expressions. Attributes are
// available both at the top level and under "attributes".
func (ctx RuleContext) bindings() map[string]any {
	ctx = ctx.withDefaults()
	env := make(map[string]any, len(ctx.Attributes)+4)
	for key, value := range ctx.Attributes {
		env[key] = value
	}
	env["attributes"] = ctx.Attributes
	env["user_id"] = ctx.UserID
	env["toggle"] = ctx.ToggleID
	env["now"] = ctx.timestamp()
	return env
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryProgramCache is a concurrency safe map backed ProgramCache.
type MemoryProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

func NewMemoryProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{programs: map[string]any{}}
}

func (c *MemoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

func (c *MemoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = map[string]any{}
	}
	c.programs[key] = value
}

// Len reports how many programs are cached.
func (c *MemoryProgramCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// Option configures an evaluator instance.
type Option func(*config)

type config struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// WithProgramCache wires a ProgramCache into the evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry wires a FunctionRegistry into the evaluator. The
// registry is cloned so later registrations do not leak into compiled programs.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
