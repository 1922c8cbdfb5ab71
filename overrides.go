package opticks

import (
	"context"
	"sort"

	"github.com/goliatone/go-opticks/pkg/activity"
)

// overrideRegistry holds operator forced values. It is independent of the
// identity and attribute context.
type overrideRegistry struct {
	values map[string]Value
}

func newOverrideRegistry() overrideRegistry {
	return overrideRegistry{values: map[string]Value{}}
}

func (o *overrideRegistry) get(toggleID string) (Value, bool) {
	value, ok := o.values[toggleID]
	return value, ok
}

// apply processes every entry independently and reports what changed.
func (o *overrideRegistry) apply(entries map[string]Value) []overrideChange {
	if o.values == nil {
		o.values = map[string]Value{}
	}
	changes := make([]overrideChange, 0, len(entries))
	for toggleID, value := range entries {
		previous, existed := o.values[toggleID]
		if value.IsUnset() {
			if !existed {
				continue
			}
			delete(o.values, toggleID)
			changes = append(changes, overrideChange{toggleID: toggleID, previous: previous})
			continue
		}
		o.values[toggleID] = value
		changes = append(changes, overrideChange{toggleID: toggleID, previous: previous, value: value})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].toggleID < changes[j].toggleID })
	return changes
}

func (o *overrideRegistry) snapshot() map[string]Value {
	out := make(map[string]Value, len(o.values))
	for toggleID, value := range o.values {
		out[toggleID] = value
	}
	return out
}

func (o *overrideRegistry) clear() {
	o.values = map[string]Value{}
}

type overrideChange struct {
	toggleID string
	previous Value
	value    Value
}

// ApplyForcedOverrides sets or removes forced values. An Unset entry removes
// any override for that toggle. Values are stored as given; a value whose
// kind does not match the toggle resolves to the per-kind default.
func (r *Resolver) ApplyForcedOverrides(entries map[string]Value) {
	r.mu.Lock()
	changes := r.overrides.apply(entries)
	userID := r.context.userID
	r.mu.Unlock()

	r.emitOverrideChanges(userID, changes)
}

// ClearForcedOverrides removes every forced value.
func (r *Resolver) ClearForcedOverrides() {
	r.mu.Lock()
	removals := make(map[string]Value, len(r.overrides.values))
	for toggleID := range r.overrides.values {
		removals[toggleID] = Unset
	}
	changes := r.overrides.apply(removals)
	userID := r.context.userID
	r.mu.Unlock()

	r.emitOverrideChanges(userID, changes)
}

// ForcedOverrides returns a copy of the active forced values.
func (r *Resolver) ForcedOverrides() map[string]Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overrides.snapshot()
}

func (r *Resolver) emitOverrideChanges(userID string, changes []overrideChange) {
	if !r.cfg.emitter.Enabled() {
		return
	}
	for _, change := range changes {
		input := activity.ToggleEventInput{
			UserID:   userID,
			ToggleID: change.toggleID,
			OldValue: change.previous.Interface(),
			NewValue: change.value.Interface(),
		}
		var event activity.Event
		if change.value.IsUnset() {
			event = activity.BuildOverrideRemovedEvent(input)
		} else {
			event = activity.BuildOverrideSetEvent(input)
		}
		r.emit(event)
	}
}

func (r *Resolver) emit(event activity.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.cfg.clock()
	}
	if err := r.cfg.emitter.Emit(context.Background(), event); err != nil {
		r.cfg.hookErrors(err)
	}
}
