package opticks

import "fmt"

// contextStore holds the active identity and attribute context. generation is
// bumped on every mutation and stamps cache writes.
type contextStore struct {
	userID     string
	attributes Attributes
	generation uint64
}

func newContextStore() contextStore {
	return contextStore{attributes: Attributes{}}
}

func (s *contextStore) setUserID(id string) {
	s.userID = id
	s.generation++
}

func (s *contextStore) merge(partial Attributes) {
	if s.attributes == nil {
		s.attributes = Attributes{}
	}
	for key, value := range partial {
		s.attributes[key] = value
	}
	s.generation++
}

func (s *contextStore) reset() {
	s.attributes = Attributes{}
	s.generation++
}

func validateAttributes(partial Attributes) error {
	for key, value := range partial {
		switch value.(type) {
		case string, bool:
		default:
			return fmt.Errorf("%w: %q is %T", ErrInvalidAttribute, key, value)
		}
	}
	return nil
}

// SetUserID replaces the active identity and invalidates both decision
// caches. The id is not validated until resolution.
func (r *Resolver) SetUserID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.context.setUserID(id)
	r.cache.clear()
}

// MergeAttributes adds or overwrites attribute keys, keeping the rest, and
// invalidates both decision caches. Values must be string or bool; on error
// nothing is changed.
func (r *Resolver) MergeAttributes(partial Attributes) error {
	if err := validateAttributes(partial); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.context.merge(partial)
	r.cache.clear()
	return nil
}

// ResetAttributes clears the attribute context and invalidates both caches.
func (r *Resolver) ResetAttributes() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.context.reset()
	r.cache.clear()
}

// UserID returns the active identity.
func (r *Resolver) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.context.userID
}

// Attributes returns a copy of the active attribute context.
func (r *Resolver) Attributes() Attributes {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.context.attributes.Clone()
}
