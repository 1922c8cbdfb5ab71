package opticks

import (
	"context"
	"time"
)

// Attributes is the audience targeting context. Values are string or bool.
type Attributes map[string]any

// Clone returns a detached copy; nil yields an empty map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for key, value := range a {
		out[key] = value
	}
	return out
}

// Definition is the opaque decision-source definition (a datafile) handed to
// the engine factory.
type Definition []byte

// Engine is the external decision source the resolver consults on a miss.
// Activate returns "" when the engine has no variation for the user.
// Activate fires the engine's activation notification; IsFeatureEnabled
// never does.
type Engine interface {
	IsFeatureEnabled(toggleID, userID string, attributes Attributes) (bool, error)
	Activate(toggleID, userID string, attributes Attributes) (string, error)
	NotificationCenter() NotificationCenter
}

// NotificationKind identifies a class of engine notifications.
type NotificationKind string

// NotificationActivate is fired once per Engine.Activate call.
const NotificationActivate NotificationKind = "activate"

// ActivationEvent describes a variation decision produced by the engine.
type ActivationEvent struct {
	ToggleID   string
	UserID     string
	Attributes Attributes
	Variation  string
	OccurredAt time.Time
}

// Listener receives activation events.
type Listener func(ActivationEvent)

// Subscription detaches a registered listener.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// NotificationCenter registers engine listeners.
type NotificationCenter interface {
	AddListener(kind NotificationKind, listener Listener) (Subscription, error)
}

// ImpressionEvent is the payload an engine hands its dispatcher.
type ImpressionEvent struct {
	ID         string
	ToggleID   string
	UserID     string
	Variation  string
	Attributes Attributes
	OccurredAt time.Time
}

// EventDispatcher ships engine events. It is owned by the engine.
type EventDispatcher interface {
	DispatchEvent(ctx context.Context, event ImpressionEvent) error
}

// EventDispatcherFunc adapts a function to EventDispatcher.
type EventDispatcherFunc func(ctx context.Context, event ImpressionEvent) error

// DispatchEvent implements EventDispatcher.
func (f EventDispatcherFunc) DispatchEvent(ctx context.Context, event ImpressionEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// NoopDispatcher drops every event.
type NoopDispatcher struct{}

func (NoopDispatcher) DispatchEvent(context.Context, ImpressionEvent) error { return nil }

// EngineFactory builds an Engine from a definition and dispatcher.
type EngineFactory interface {
	NewEngine(definition Definition, dispatcher EventDispatcher) (Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(definition Definition, dispatcher EventDispatcher) (Engine, error)

// NewEngine implements EngineFactory.
func (f EngineFactoryFunc) NewEngine(definition Definition, dispatcher EventDispatcher) (Engine, error) {
	return f(definition, dispatcher)
}

// Source reports which tier answered a resolution.
type Source uint8

const (
	SourceNone Source = iota
	SourceForced
	SourceCached
	SourceEngine
)

func (s Source) String() string {
	switch s {
	case SourceForced:
		return "forced"
	case SourceCached:
		return "cached"
	case SourceEngine:
		return "engine"
	default:
		return "none"
	}
}

// Decision is a resolved toggle value along with where it came from.
// Defaulted is set when a forced or cached value had the wrong kind and the
// per-kind default was substituted.
type Decision[T any] struct {
	ToggleID  string
	Value     T
	Source    Source
	Defaulted bool
}
