package tzroom

// GroupView is the part of the transport that reports group membership.
type GroupView interface {
	GroupsOf(connID string) []string
}

// Resolver derives a connection's room from the transport's group view.
type Resolver struct {
	groups   GroupView
	registry *Registry
}

func NewResolver(groups GroupView, registry *Registry) *Resolver {
	return &Resolver{groups: groups, registry: registry}
}

// CurrentRoomOf returns the room the connection is in. Every connection is a
// member of a group named after itself; that group is never a room.
func (r *Resolver) CurrentRoomOf(connID string) (string, bool) {
	for _, group := range r.groups.GroupsOf(connID) {
		if group != connID {
			return group, true
		}
	}
	return "", false
}

// IsOwner reports whether the connection owns the room it is in.
func (r *Resolver) IsOwner(connID string) bool {
	room, ok := r.CurrentRoomOf(connID)
	if !ok {
		return false
	}
	owner, ok := r.registry.OwnerOf(room)
	return ok && owner == connID
}
