package opticks

import (
	"sync"
	"testing"
)

type fakeCall struct {
	method     string
	toggleID   string
	userID     string
	attributes Attributes
}

type fakeEngine struct {
	mu          sync.Mutex
	features    map[string]bool
	variations  map[string]string
	featureErr  error
	activateErr error
	calls       []fakeCall
	listeners   map[int]Listener
	nextID      int
	onQuery     func()
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		features:   map[string]bool{},
		variations: map[string]string{},
		listeners:  map[int]Listener{},
	}
}

func (e *fakeEngine) IsFeatureEnabled(toggleID, userID string, attributes Attributes) (bool, error) {
	e.mu.Lock()
	e.calls = append(e.calls, fakeCall{method: "isFeatureEnabled", toggleID: toggleID, userID: userID, attributes: attributes.Clone()})
	enabled, err, hook := e.features[toggleID], e.featureErr, e.onQuery
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return enabled, err
}

func (e *fakeEngine) Activate(toggleID, userID string, attributes Attributes) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, fakeCall{method: "activate", toggleID: toggleID, userID: userID, attributes: attributes.Clone()})
	variation, err, hook := e.variations[toggleID], e.activateErr, e.onQuery
	listeners := make([]Listener, 0, len(e.listeners))
	for _, listener := range e.listeners {
		listeners = append(listeners, listener)
	}
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}
	for _, listener := range listeners {
		listener(ActivationEvent{ToggleID: toggleID, UserID: userID, Attributes: attributes.Clone(), Variation: variation})
	}
	return variation, nil
}

func (e *fakeEngine) NotificationCenter() NotificationCenter {
	return e
}

func (e *fakeEngine) AddListener(kind NotificationKind, listener Listener) (Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.listeners[id] = listener
	return SubscriptionFunc(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}), nil
}

func (e *fakeEngine) count(method, toggleID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, call := range e.calls {
		if call.method == method && call.toggleID == toggleID {
			n++
		}
	}
	return n
}

func (e *fakeEngine) lastCall() fakeCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[len(e.calls)-1]
}

func (e *fakeEngine) listenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

func (e *fakeEngine) factory() EngineFactory {
	return EngineFactoryFunc(func(Definition, EventDispatcher) (Engine, error) {
		return e, nil
	})
}

// newInitialized returns a resolver wired to engine with identity u1.
func newInitialized(t *testing.T, engine *fakeEngine, opts ...Option) *Resolver {
	t.Helper()
	resolver := New(append([]Option{WithEngineFactory(engine.factory())}, opts...)...)
	if err := resolver.Initialize(Definition(`{}`), nil, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	resolver.SetUserID("u1")
	return resolver
}
