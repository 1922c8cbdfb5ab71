package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "toggles"

// Config controls activity emission.
type Config struct {
	Enabled bool
	Channel string
	// Verbs restricts emission to the listed verbs. Empty means all.
	Verbs []string
}

// Emitter fans out events to hooks while applying defaults.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   map[string]struct{}
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	var verbs map[string]struct{}
	for _, verb := range cfg.Verbs {
		verb = strings.TrimSpace(verb)
		if verb == "" {
			continue
		}
		if verbs == nil {
			verbs = map[string]struct{}{}
		}
		verbs[verb] = struct{}{}
	}
	live := compactHooks(hooks)
	return &Emitter{
		hooks:   live,
		enabled: cfg.Enabled && len(live) > 0,
		channel: channel,
		verbs:   verbs,
	}
}

// Enabled reports whether emissions should be attempted. A nil emitter is
// disabled.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit forwards event to all hooks, applying the default channel and the verb
// filter.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if e.verbs != nil {
		if _, ok := e.verbs[strings.TrimSpace(event.Verb)]; !ok {
			return nil
		}
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}

func compactHooks(hooks Hooks) Hooks {
	var live Hooks
	for _, hook := range hooks {
		if hook != nil {
			live = append(live, hook)
		}
	}
	return live
}
