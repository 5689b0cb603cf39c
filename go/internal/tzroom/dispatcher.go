package tzroom

import "github.com/rs/zerolog/log"

// Dispatcher addresses outbound events: one connection, a whole room, or the
// room's owner.
type Dispatcher struct {
	transport Transport
	registry  *Registry
}

func NewDispatcher(transport Transport, registry *Registry) *Dispatcher {
	return &Dispatcher{transport: transport, registry: registry}
}

func (d *Dispatcher) ToConn(connID, event string, data interface{}) {
	if err := d.transport.SendTo(connID, event, data); err != nil {
		log.Debug().Err(err).Str("connection_id", connID).Str("event", event).Msg("event not delivered")
	}
}

func (d *Dispatcher) ToRoom(room, event string, data interface{}) {
	d.transport.SendToGroup(room, event, data)
}

func (d *Dispatcher) ToOwner(room, event string, data interface{}) {
	owner, ok := d.registry.OwnerOf(room)
	if !ok {
		return
	}
	d.ToConn(owner, event, data)
}

// RequestDateInfo asks the room's owner to re-send its datetime.
func (d *Dispatcher) RequestDateInfo(room string) {
	d.ToOwner(room, EventRequestDateInfo, nil)
}
