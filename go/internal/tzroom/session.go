package tzroom

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tzrooms/go/internal/gateway"
	"github.com/mcdev12/tzrooms/go/internal/metrics"
)

// Session wires gateway callbacks to the controller.
type Session struct {
	controller *Controller
	transport  Transport
	timeSource TimeSource
	metrics    metrics.Collector
}

var _ gateway.Handler = (*Session)(nil)

func NewSession(controller *Controller, transport Transport, timeSource TimeSource, m metrics.Collector) *Session {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &Session{
		controller: controller,
		transport:  transport,
		timeSource: timeSource,
		metrics:    m,
	}
}

// OnConnect greets the connection, then sends the timezone list once the
// time source answers.
func (s *Session) OnConnect(connID string) {
	total := s.transport.Count()
	log.Info().
		Str("connection_id", connID).
		Int("total_connections", total).
		Msg("user connected")

	dispatcher := s.controller.Dispatcher()
	dispatcher.ToConn(connID, EventWelcome, fmt.Sprintf(
		"Welcome, new user! By this time we have %d connected clients. Your ID is: %s", total, connID))

	s.transport.Go(func(ctx context.Context) func() {
		timezones, err := s.timeSource.Timezones(ctx)
		return func() {
			if err != nil {
				dispatcher.ToConn(connID, EventFetchTimezones, FetchTimezones{
					Message:   "Could not fetch timezones",
					Timezones: []string{},
				})
				return
			}
			dispatcher.ToConn(connID, EventFetchTimezones, FetchTimezones{
				Message:   "Timezones fetched successfully",
				Timezones: timezones,
			})
		}
	})
}

func (s *Session) OnMessage(connID string, msg gateway.Message) {
	var err error

	switch msg.Event {
	case EventCreateRoom:
		err = s.controller.Create(connID, decodeRoomName(msg.Data))
	case EventJoinRoom:
		err = s.controller.Join(connID, decodeRoomName(msg.Data))
	case EventLeaveRoom:
		err = s.controller.Leave(connID)
	case EventDateForUpdate, EventTimezoneChanged:
		req := decodeDatetimeRequest(msg.Data)
		s.controller.UpdateDatetime(connID, req.SelectedTimezone, req.OwnerLocalDatetime)
	default:
		log.Debug().
			Str("connection_id", connID).
			Str("event", msg.Event).
			Msg("unknown event")
		s.metrics.RecordRequest("unknown", false)
		return
	}

	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", connID).
			Str("event", msg.Event).
			Msg("request rejected")
	}
	s.metrics.RecordRequest(msg.Event, err == nil)
}

// OnDisconnect only logs; room cleanup arrives through OnGroupEvent.
func (s *Session) OnDisconnect(connID string) {
	log.Info().
		Str("connection_id", connID).
		Int("total_connections", s.transport.Count()).
		Msg("user disconnected")
}

func (s *Session) OnGroupEvent(event gateway.GroupEvent) {
	switch event.Kind {
	case gateway.GroupJoined:
		s.controller.HandleMembership(MembershipEvent{Kind: MemberJoined, Room: event.Group, ConnID: event.ConnID})
	case gateway.GroupLeft:
		s.controller.HandleMembership(MembershipEvent{Kind: MemberLeft, Room: event.Group, ConnID: event.ConnID})
	case gateway.GroupDeleted:
		s.controller.HandleMembership(MembershipEvent{Kind: RoomEmptied, Room: event.Group})
	}
}
