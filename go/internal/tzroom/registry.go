package tzroom

import (
	"maps"
	"slices"
)

// Registry maps room names to their owner's connection ID. It is the only
// record of which rooms exist. Membership lives in the transport.
//
// Registry is not safe for concurrent use; it is confined to the gateway's
// event loop.
type Registry struct {
	owners map[string]string
}

func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]string)}
}

func (r *Registry) Exists(name string) bool {
	_, ok := r.owners[name]
	return ok
}

func (r *Registry) OwnerOf(name string) (string, bool) {
	owner, ok := r.owners[name]
	return owner, ok
}

// SetOwner creates the room or replaces its owner.
func (r *Registry) SetOwner(name, ownerID string) {
	r.owners[name] = ownerID
}

func (r *Registry) Remove(name string) {
	delete(r.owners, name)
}

func (r *Registry) Len() int {
	return len(r.owners)
}

// Names returns the room names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.owners))
}
