package localengine

import (
	"fmt"
	"sync"

	opticks "github.com/goliatone/go-opticks"
)

type registration struct {
	id       uint64
	listener opticks.Listener
}

type notificationCenter struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[opticks.NotificationKind][]registration
}

func newNotificationCenter() *notificationCenter {
	return &notificationCenter{listeners: map[opticks.NotificationKind][]registration{}}
}

// AddListener registers listener for kind. Only NotificationActivate is
// produced by this engine.
func (c *notificationCenter) AddListener(kind opticks.NotificationKind, listener opticks.Listener) (opticks.Subscription, error) {
	if kind != opticks.NotificationActivate {
		return nil, fmt.Errorf("localengine: unsupported notification kind %q", kind)
	}
	if listener == nil {
		return nil, fmt.Errorf("localengine: listener is nil")
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[kind] = append(c.listeners[kind], registration{id: id, listener: listener})
	c.mu.Unlock()

	var once sync.Once
	return opticks.SubscriptionFunc(func() {
		once.Do(func() { c.remove(kind, id) })
	}), nil
}

func (c *notificationCenter) remove(kind opticks.NotificationKind, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.listeners[kind]
	kept := make([]registration, 0, len(current))
	for _, reg := range current {
		if reg.id != id {
			kept = append(kept, reg)
		}
	}
	c.listeners[kind] = kept
}

// fire calls listeners outside the lock so they may register or unsubscribe.
func (c *notificationCenter) fire(kind opticks.NotificationKind, event opticks.ActivationEvent) {
	c.mu.RLock()
	snapshot := append([]registration(nil), c.listeners[kind]...)
	c.mu.RUnlock()
	for _, reg := range snapshot {
		reg.listener(event)
	}
}

func (c *notificationCenter) count(kind opticks.NotificationKind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners[kind])
}
