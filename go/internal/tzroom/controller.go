package tzroom

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tzrooms/go/internal/metrics"
	"github.com/mcdev12/tzrooms/go/internal/roomevents"
)

// MembershipKind is the kind of transport membership change.
type MembershipKind int

const (
	MemberJoined MembershipKind = iota
	MemberLeft
	RoomEmptied
)

// MembershipEvent is a group membership change reported by the transport.
// ConnID is empty for RoomEmptied.
type MembershipEvent struct {
	Kind   MembershipKind
	Room   string
	ConnID string
}

// EventEmitter receives room lifecycle events; see roomevents.Relay.
type EventEmitter interface {
	Emit(eventType roomevents.EventType, roomName, connectionID, ownerID string)
}

type nopEmitter struct{}

func (nopEmitter) Emit(roomevents.EventType, string, string, string) {}

// Controller is the room lifecycle state machine. A connection is either in
// no room or in exactly one. Every Registry mutation happens here, and every
// method runs on the gateway's event loop.
type Controller struct {
	registry   *Registry
	resolver   *Resolver
	transport  Transport
	dispatcher *Dispatcher
	timeSource TimeSource
	events     EventEmitter
	clock      clockwork.Clock
	metrics    metrics.Collector
}

type ControllerOption func(*Controller)

func WithEventEmitter(e EventEmitter) ControllerOption {
	return func(c *Controller) { c.events = e }
}

func WithClock(clock clockwork.Clock) ControllerOption {
	return func(c *Controller) { c.clock = clock }
}

func WithMetrics(m metrics.Collector) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

func NewController(transport Transport, timeSource TimeSource, opts ...ControllerOption) *Controller {
	registry := NewRegistry()
	c := &Controller{
		registry:   registry,
		resolver:   NewResolver(transport, registry),
		transport:  transport,
		dispatcher: NewDispatcher(transport, registry),
		timeSource: timeSource,
		events:     nopEmitter{},
		clock:      clockwork.NewRealClock(),
		metrics:    metrics.NoOpCollector{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Registry() *Registry { return c.registry }

func (c *Controller) Resolver() *Resolver { return c.resolver }

func (c *Controller) Dispatcher() *Dispatcher { return c.dispatcher }

// Create makes requester the owner of a new room, leaving its current room
// first. The result goes to the requester only.
func (c *Controller) Create(requester, name string) error {
	current, joined := c.resolver.CurrentRoomOf(requester)
	if joined && current == name {
		return c.createFailed(requester, name, ErrAlreadyInRoom)
	}
	if joined {
		c.transport.Leave(requester, current)
	}

	if !IsValidRoomName(name) {
		return c.createFailed(requester, name, ErrInvalidName)
	}
	// A connection's self-group is reserved as well
	if c.registry.Exists(name) || c.transport.HasGroup(name) {
		return c.createFailed(requester, name, ErrNameTaken)
	}

	c.registry.SetOwner(name, requester)
	c.metrics.SetRooms(c.registry.Len())
	c.events.Emit(roomevents.EventTypeRoomCreated, name, requester, requester)
	c.transport.Join(requester, name)

	log.Info().
		Str("connection_id", requester).
		Str("room", name).
		Msg("timezone room created")

	c.dispatcher.ToConn(requester, EventCreateResult, CreateResult{
		Message:  fmt.Sprintf("Timezone room %q created.", name),
		Success:  true,
		RoomName: name,
		OwnerID:  requester,
	})
	return nil
}

func (c *Controller) createFailed(requester, name string, err error) error {
	c.dispatcher.ToConn(requester, EventCreateResult, CreateResult{
		Message: failureMessage(err, name),
	})
	return err
}

// Join moves requester into an existing room and asks the owner to refresh
// the room's datetime.
func (c *Controller) Join(requester, name string) error {
	if !c.registry.Exists(name) {
		return c.joinFailed(requester, name, ErrRoomNotFound)
	}

	current, joined := c.resolver.CurrentRoomOf(requester)
	if joined && current == name {
		return c.joinFailed(requester, name, ErrAlreadyInRoom)
	}
	if joined {
		c.transport.Leave(requester, current)
	}

	c.transport.Join(requester, name)
	owner, _ := c.registry.OwnerOf(name)

	log.Info().
		Str("connection_id", requester).
		Str("room", name).
		Msg("joined timezone room")

	c.dispatcher.ToConn(requester, EventJoinResult, JoinResult{
		Message:   fmt.Sprintf("Joined timezone room %q.", name),
		Success:   true,
		RoomName:  name,
		MemberIDs: c.transport.Members(name),
		OwnerID:   owner,
	})
	c.dispatcher.RequestDateInfo(name)
	return nil
}

func (c *Controller) joinFailed(requester, name string, err error) error {
	c.dispatcher.ToConn(requester, EventJoinResult, JoinResult{
		Message: failureMessage(err, name),
	})
	return err
}

// Leave takes requester out of its current room.
func (c *Controller) Leave(requester string) error {
	current, joined := c.resolver.CurrentRoomOf(requester)
	if !joined {
		c.dispatcher.ToConn(requester, EventLeaveResult, LeaveResult{
			Message: failureMessage(ErrNotInRoom, ""),
		})
		return ErrNotInRoom
	}

	c.transport.Leave(requester, current)

	c.dispatcher.ToConn(requester, EventLeaveResult, LeaveResult{
		Message:  fmt.Sprintf("Left timezone room %q.", current),
		Success:  true,
		RoomName: current,
	})
	return nil
}

// UpdateDatetime resolves the datetime for timezone. An owner's result is
// broadcast to its room, anyone else's is sent back privately. "local"
// broadcasts the owner's own datetime and is ignored for non-owners.
func (c *Controller) UpdateDatetime(requester, timezone, ownerLocalDatetime string) {
	if timezone == "" {
		log.Debug().Str("connection_id", requester).Msg("datetime request without timezone")
		return
	}

	room, joined := c.resolver.CurrentRoomOf(requester)
	if joined && c.resolver.IsOwner(requester) {
		if timezone == LocalTimezone {
			datetime := NormalizeDatetime(ownerLocalDatetime)
			if datetime == "" {
				datetime = c.clock.Now().Format(datetimeLayout)
			}
			c.dispatcher.ToRoom(room, EventDatetimeOfTimezone, DatetimeOfTimezone{
				Datetime:         datetime,
				SelectedTimezone: timezone,
			})
			return
		}

		c.resolveDatetime(requester, timezone, func(datetime string) {
			// Ownership may have moved while the lookup was in flight
			if current, ok := c.resolver.CurrentRoomOf(requester); !ok || current != room || !c.resolver.IsOwner(requester) {
				log.Debug().
					Str("connection_id", requester).
					Str("room", room).
					Msg("dropping datetime from former owner")
				return
			}
			c.dispatcher.ToRoom(room, EventDatetimeOfTimezone, DatetimeOfTimezone{
				Datetime:         datetime,
				SelectedTimezone: timezone,
			})
		})
		return
	}

	if timezone == LocalTimezone {
		return
	}
	c.resolveDatetime(requester, timezone, func(datetime string) {
		c.dispatcher.ToConn(requester, EventDatetimeOfTimezone, DatetimeOfTimezone{
			Datetime:         datetime,
			SelectedTimezone: timezone,
		})
	})
}

// resolveDatetime queries the time source off the loop. deliver runs back on
// the loop on success; on failure the requester alone gets an error payload.
func (c *Controller) resolveDatetime(requester, timezone string, deliver func(datetime string)) {
	c.transport.Go(func(ctx context.Context) func() {
		datetime, err := c.timeSource.Datetime(ctx, timezone)
		return func() {
			if err != nil {
				c.dispatcher.ToConn(requester, EventDatetimeOfTimezone, DatetimeOfTimezone{
					SelectedTimezone: timezone,
					Error:            fmt.Sprintf("Could not fetch datetime for %s", timezone),
				})
				return
			}
			deliver(datetime)
		}
	})
}

// HandleMembership applies a transport membership change.
func (c *Controller) HandleMembership(event MembershipEvent) {
	switch event.Kind {
	case MemberJoined:
		c.memberJoined(event.Room, event.ConnID)
	case MemberLeft:
		c.memberLeft(event.Room, event.ConnID)
	case RoomEmptied:
		c.roomEmptied(event.Room)
	}
}

func (c *Controller) memberJoined(room, connID string) {
	if room == connID {
		return
	}
	if owner, ok := c.registry.OwnerOf(room); ok {
		c.events.Emit(roomevents.EventTypeMemberJoined, room, connID, owner)
	}
	c.dispatcher.ToRoom(room, EventNewUserJoined, NewUserJoined{
		RoomName:  room,
		MemberIDs: c.transport.Members(room),
	})
}

func (c *Controller) memberLeft(room, connID string) {
	owner, tracked := c.registry.OwnerOf(room)
	if !tracked {
		return
	}

	members := c.transport.Members(room)
	if len(members) == 0 {
		// RoomEmptied follows
		c.events.Emit(roomevents.EventTypeMemberLeft, room, connID, "")
		return
	}

	if owner == connID || !slices.Contains(members, owner) {
		owner = members[0]
		c.registry.SetOwner(room, owner)
		c.events.Emit(roomevents.EventTypeOwnerChanged, room, connID, owner)
		log.Info().
			Str("room", room).
			Str("previous_owner", connID).
			Str("owner", owner).
			Msg("room ownership transferred")
	}
	c.events.Emit(roomevents.EventTypeMemberLeft, room, connID, owner)

	c.dispatcher.ToRoom(room, EventUserLeft, UserLeft{
		RoomName:   room,
		MemberIDs:  members,
		NewOwnerID: owner,
	})
	c.dispatcher.RequestDateInfo(room)
}

func (c *Controller) roomEmptied(room string) {
	if !c.registry.Exists(room) {
		return
	}
	c.registry.Remove(room)
	c.metrics.SetRooms(c.registry.Len())
	c.events.Emit(roomevents.EventTypeRoomDeleted, room, "", "")

	log.Info().Str("room", room).Msg("timezone room deleted")
}

// RoomState describes one room for the HTTP state endpoint.
type RoomState struct {
	RoomName  string   `json:"roomName"`
	OwnerID   string   `json:"ownerId"`
	MemberIDs []string `json:"memberIds"`
}

// Rooms returns every room sorted by name. Runs on the loop.
func (c *Controller) Rooms() []RoomState {
	names := c.registry.Names()
	rooms := make([]RoomState, 0, len(names))
	for _, name := range names {
		room, _ := c.Room(name)
		rooms = append(rooms, room)
	}
	return rooms
}

// Room returns the state of one room. Runs on the loop.
func (c *Controller) Room(name string) (RoomState, bool) {
	owner, ok := c.registry.OwnerOf(name)
	if !ok {
		return RoomState{}, false
	}
	return RoomState{
		RoomName:  name,
		OwnerID:   owner,
		MemberIDs: c.transport.Members(name),
	}, true
}

func failureMessage(err error, name string) string {
	switch {
	case errors.Is(err, ErrAlreadyInRoom):
		return fmt.Sprintf("You are already in timezone room %q.", name)
	case errors.Is(err, ErrInvalidName):
		return fmt.Sprintf("Room name %q is invalid: use at least 2 letters, digits, spaces, underscores or hyphens, starting with a letter, digit or underscore.", name)
	case errors.Is(err, ErrNameTaken):
		return fmt.Sprintf("Timezone room %q already exists.", name)
	case errors.Is(err, ErrRoomNotFound):
		return fmt.Sprintf("Timezone room %q does not exist.", name)
	case errors.Is(err, ErrNotInRoom):
		return "You are not in a timezone room."
	default:
		return "Request failed."
	}
}
