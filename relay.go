package opticks

import "github.com/goliatone/go-opticks/pkg/activity"

// Initialize builds the engine with the registered factory and wires exactly
// one activation listener that forwards every event, unmodified, to
// onDecision. A nil onDecision is a no-op and a nil dispatcher is replaced by
// NoopDispatcher. Calling Initialize again replaces the engine, detaches the
// previous relay listener and invalidates both caches. This is the only cache
// invalidation not caused by an identity or attribute change; decisions from
// a replaced engine must not be served.
func (r *Resolver) Initialize(definition Definition, onDecision Listener, dispatcher EventDispatcher) error {
	if dispatcher == nil {
		dispatcher = NoopDispatcher{}
	}

	r.mu.Lock()
	factory := r.factory
	r.mu.Unlock()
	if factory == nil {
		return ErrEngineFactoryMissing
	}

	engine, err := factory.NewEngine(definition, dispatcher)
	if err != nil {
		return wrapInitializationError("engine", err)
	}
	if engine == nil {
		return wrapInitializationError("engine", ErrEngineUnavailable)
	}

	subscription, err := r.subscribe(engine, r.relayListener(onDecision))
	if err != nil {
		return wrapInitializationError("listener", err)
	}

	r.mu.Lock()
	previous := r.relay
	r.engine = engine
	r.relay = subscription
	r.context.generation++
	r.cache.clear()
	r.mu.Unlock()

	if previous != nil {
		previous.Unsubscribe()
	}
	return nil
}

// AddDecisionListener registers an additional activation listener on the
// current engine.
func (r *Resolver) AddDecisionListener(listener Listener) (Subscription, error) {
	r.mu.Lock()
	engine := r.engine
	r.mu.Unlock()
	if engine == nil {
		return nil, ErrEngineUnavailable
	}
	if listener == nil {
		listener = func(ActivationEvent) {}
	}
	return r.subscribe(engine, listener)
}

func (r *Resolver) subscribe(engine Engine, listener Listener) (Subscription, error) {
	center := engine.NotificationCenter()
	if center == nil {
		return nil, ErrEngineUnavailable
	}
	subscription, err := center.AddListener(NotificationActivate, listener)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		subscription = SubscriptionFunc(nil)
	}
	return subscription, nil
}

func (r *Resolver) relayListener(onDecision Listener) Listener {
	return func(event ActivationEvent) {
		if onDecision != nil {
			onDecision(event)
		}
		if r.cfg.emitter.Enabled() {
			r.emit(activity.BuildToggleActivatedEvent(activity.ToggleEventInput{
				UserID:     event.UserID,
				ToggleID:   event.ToggleID,
				NewValue:   event.Variation,
				Attributes: event.Attributes,
				OccurredAt: event.OccurredAt,
			}))
		}
	}
}
