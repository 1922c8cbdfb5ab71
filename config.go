package opticks

import (
	"time"

	"github.com/goliatone/go-opticks/pkg/activity"
)

// Option configures a Resolver.
type Option func(*resolverConfig)

type resolverConfig struct {
	factory    EngineFactory
	logger     ResolutionLogger
	emitter    *activity.Emitter
	hookErrors func(error)
	clock      func() time.Time
}

func applyOptions(opts []Option) resolverConfig {
	cfg := resolverConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopResolutionLogger{}
	}
	if cfg.hookErrors == nil {
		cfg.hookErrors = func(error) {}
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return cfg
}

// WithEngineFactory injects the factory Initialize uses to build the engine.
func WithEngineFactory(factory EngineFactory) Option {
	return func(cfg *resolverConfig) {
		cfg.factory = factory
	}
}

// WithLogger attaches a resolution logger.
func WithLogger(logger ResolutionLogger) Option {
	return func(cfg *resolverConfig) {
		if logger == nil {
			cfg.logger = noopResolutionLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithActivityHooks emits activation and override activity to hooks. The
// channel defaults to "toggles".
func WithActivityHooks(hooks activity.Hooks, cfg activity.Config) Option {
	if cfg.Channel == "" {
		cfg.Channel = activity.DefaultChannel
	}
	emitter := activity.NewEmitter(hooks, cfg)
	return func(rc *resolverConfig) {
		rc.emitter = emitter
	}
}

// WithHookErrorHandler receives errors returned by activity hooks.
func WithHookErrorHandler(fn func(error)) Option {
	return func(cfg *resolverConfig) {
		cfg.hookErrors = fn
	}
}

// WithClock overrides the time source used for durations and event stamps.
func WithClock(clock func() time.Time) Option {
	return func(cfg *resolverConfig) {
		cfg.clock = clock
	}
}
