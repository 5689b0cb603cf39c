package tzroom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Exists("lobby"))

	r.SetOwner("lobby", "c1")
	r.SetOwner("attic", "c2")
	r.SetOwner("lobby", "c3")

	owner, ok := r.OwnerOf("lobby")
	assert.True(t, ok)
	assert.Equal(t, "c3", owner)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"attic", "lobby"}, r.Names())

	r.Remove("lobby")
	r.Remove("missing")
	_, ok = r.OwnerOf("lobby")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestResolver(t *testing.T) {
	transport := newFakeTransport()
	transport.connect("c1")
	transport.connect("c2")
	registry := NewRegistry()
	resolver := NewResolver(transport, registry)

	_, joined := resolver.CurrentRoomOf("c1")
	assert.False(t, joined)
	assert.False(t, resolver.IsOwner("c1"))

	registry.SetOwner("lobby", "c1")
	transport.Join("c1", "lobby")
	transport.Join("c2", "lobby")

	room, joined := resolver.CurrentRoomOf("c2")
	assert.True(t, joined)
	assert.Equal(t, "lobby", room)
	assert.True(t, resolver.IsOwner("c1"))
	assert.False(t, resolver.IsOwner("c2"))
}
