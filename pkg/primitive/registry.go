package primitive

import (
	"fmt"
	"sync"

	"github.com/coreward/atomix/pkg/types"
)

// Instance is one named primitive's state, as held inside a partition's
// Machine. It is the unit Machine snapshots, restores, and dispatches
// operations to.
type Instance interface {
	Apply(op []byte) ([]byte, error)
	// Query serves a read-only operation directly, without going through
	// Apply's replicated log entry. Implementations reject anything that
	// would mutate state.
	Query(op []byte) ([]byte, error)
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// Factory constructs a fresh, empty Instance of one primitive type.
type Factory func() Instance

// Registry maps a PrimitiveType to the Factory that builds it.
type Registry struct {
	mu        sync.RWMutex
	factories map[types.PrimitiveType]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[types.PrimitiveType]Factory)}
}

// Register associates t with f, overwriting any previous factory for t.
func (r *Registry) Register(t types.PrimitiveType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// New builds a fresh Instance of type t.
func (r *Registry) New(t types.PrimitiveType) (Instance, error) {
	r.mu.RLock()
	f, ok := r.factories[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("primitive: no factory registered for type %q", t)
	}
	return f(), nil
}

// Types returns the registered primitive types.
func (r *Registry) Types() []types.PrimitiveType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.PrimitiveType, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	return out
}

// NewDefaultRegistry returns a registry with the built-in primitive types
// registered: map, lock, counter, and leader-election.
func NewDefaultRegistry() *Registry {
	return NewRegistryFor(
		types.PrimitiveTypeMap,
		types.PrimitiveTypeLock,
		types.PrimitiveTypeCounter,
		types.PrimitiveTypeLeaderElection,
	)
}

var builtinFactories = map[types.PrimitiveType]Factory{
	types.PrimitiveTypeMap:            func() Instance { return newMapInstance() },
	types.PrimitiveTypeLock:           func() Instance { return newLockInstance() },
	types.PrimitiveTypeCounter:        func() Instance { return newCounterInstance() },
	types.PrimitiveTypeLeaderElection: func() Instance { return newLeaderElectionInstance() },
}

// NewRegistryFor returns a registry with only the named built-in types
// registered, for deployments that want to restrict which primitives a
// cluster serves.
func NewRegistryFor(ts ...types.PrimitiveType) *Registry {
	r := NewRegistry()
	for _, t := range ts {
		if f, ok := builtinFactories[t]; ok {
			r.Register(t, f)
		}
	}
	return r
}
