package agent

import (
	"context"
	"fmt"
	"sort"
)

// Actor is the interface all remotely invocable agents must implement.
//
// Invoke dispatches a call by method name. Arguments are concrete Values:
// any Ref arguments have already been resolved by the Host before the
// method body runs. Implementations do not need to be thread-safe; the
// Host guarantees at most one call executes against an instance at a time.
type Actor interface {
	Invoke(ctx context.Context, method string, args []Value) (Value, error)
}

// Corrupted marks an actor as unusable. If an actor method returns an error
// that matches Corrupted (via errors.Is), the Host destroys the instance and
// subsequent calls against its id fail with ErrNotFound.
type Corrupted struct {
	Err error
}

func (c *Corrupted) Error() string { return fmt.Sprintf("actor state corrupted: %v", c.Err) }
func (c *Corrupted) Unwrap() error { return c.Err }

// Constructor builds a new actor instance from creation arguments.
type Constructor func(args []Value) (Actor, error)

// Registry is the allow-list of actor classes a Host may instantiate.
// It is populated once at construction and never mutated afterwards, so
// it needs no locking and a Host can never be asked to instantiate
// arbitrary code over the wire.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates a Registry from an explicit class allow-list.
// The map is copied; later mutation of the argument has no effect.
func NewRegistry(classes map[string]Constructor) *Registry {
	ctors := make(map[string]Constructor, len(classes))
	for name, ctor := range classes {
		ctors[name] = ctor
	}
	return &Registry{constructors: ctors}
}

// New instantiates the named class. Returns ErrNotFound if the class is
// not in the allow-list.
func (r *Registry) New(class string, args []Value) (Actor, error) {
	ctor, ok := r.constructors[class]
	if !ok {
		return nil, fmt.Errorf("%w: class %q not registered", ErrNotFound, class)
	}
	return ctor(args)
}

// Has reports whether the named class is registered.
func (r *Registry) Has(class string) bool {
	_, ok := r.constructors[class]
	return ok
}

// Classes returns the sorted names of all registered classes.
func (r *Registry) Classes() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
