package tzroom

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/tzrooms/go/internal/gateway"
	"github.com/mcdev12/tzrooms/go/internal/roomevents"
)

type sentMessage struct {
	to    string
	event string
	data  interface{}
}

// fakeTransport mirrors the gateway's semantics without sockets: join order
// is preserved, callbacks fire synchronously, leave precedes delete, and Go
// work is queued until runPending.
type fakeTransport struct {
	handler     gateway.Handler
	conns       []string
	groups      map[string][]string
	memberships map[string][]string
	sent        []sentMessage
	pending     []func(ctx context.Context) func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		groups:      make(map[string][]string),
		memberships: make(map[string][]string),
	}
}

func (t *fakeTransport) connect(id string) {
	t.conns = append(t.conns, id)
	t.Join(id, id)
	if t.handler != nil {
		t.handler.OnConnect(id)
	}
}

func (t *fakeTransport) disconnect(id string) {
	idx := slices.Index(t.conns, id)
	if idx < 0 {
		return
	}
	t.conns = slices.Delete(t.conns, idx, idx+1)
	for _, group := range slices.Clone(t.memberships[id]) {
		t.leave(id, group)
	}
	if t.handler != nil {
		t.handler.OnDisconnect(id)
	}
}

func (t *fakeTransport) Join(connID, group string) {
	if !slices.Contains(t.conns, connID) || slices.Contains(t.groups[group], connID) {
		return
	}
	t.groups[group] = append(t.groups[group], connID)
	t.memberships[connID] = append(t.memberships[connID], group)
	t.notify(gateway.GroupEvent{Kind: gateway.GroupJoined, Group: group, ConnID: connID})
}

func (t *fakeTransport) Leave(connID, group string) {
	t.leave(connID, group)
}

func (t *fakeTransport) leave(connID, group string) {
	idx := slices.Index(t.groups[group], connID)
	if idx < 0 {
		return
	}
	t.groups[group] = slices.Delete(slices.Clone(t.groups[group]), idx, idx+1)
	if j := slices.Index(t.memberships[connID], group); j >= 0 {
		t.memberships[connID] = slices.Delete(slices.Clone(t.memberships[connID]), j, j+1)
	}
	t.notify(gateway.GroupEvent{Kind: gateway.GroupLeft, Group: group, ConnID: connID})
	if len(t.groups[group]) == 0 {
		delete(t.groups, group)
		t.notify(gateway.GroupEvent{Kind: gateway.GroupDeleted, Group: group})
	}
}

func (t *fakeTransport) notify(event gateway.GroupEvent) {
	if t.handler != nil {
		t.handler.OnGroupEvent(event)
	}
}

func (t *fakeTransport) Members(group string) []string {
	return slices.Clone(t.groups[group])
}

func (t *fakeTransport) GroupsOf(connID string) []string {
	return slices.Clone(t.memberships[connID])
}

func (t *fakeTransport) HasGroup(group string) bool {
	return len(t.groups[group]) > 0
}

func (t *fakeTransport) SendTo(connID, event string, data interface{}) error {
	if !slices.Contains(t.conns, connID) {
		return gateway.ErrUnknownConnection
	}
	t.sent = append(t.sent, sentMessage{to: connID, event: event, data: data})
	return nil
}

func (t *fakeTransport) SendToGroup(group, event string, data interface{}) {
	for _, id := range t.groups[group] {
		t.sent = append(t.sent, sentMessage{to: id, event: event, data: data})
	}
}

func (t *fakeTransport) Go(work func(ctx context.Context) func()) {
	t.pending = append(t.pending, work)
}

func (t *fakeTransport) Count() int {
	return len(t.conns)
}

// runPending runs queued async work and its continuations in order.
func (t *fakeTransport) runPending() {
	for len(t.pending) > 0 {
		work := t.pending[0]
		t.pending = t.pending[1:]
		if next := work(context.Background()); next != nil {
			next()
		}
	}
}

// received returns the payloads of event delivered to id, oldest first.
func (t *fakeTransport) received(id, event string) []interface{} {
	var out []interface{}
	for _, m := range t.sent {
		if m.to == id && m.event == event {
			out = append(out, m.data)
		}
	}
	return out
}

func (t *fakeTransport) last(id, event string) interface{} {
	msgs := t.received(id, event)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (t *fakeTransport) reset() {
	t.sent = nil
}

type fakeTimeSource struct {
	timezones []string
	datetimes map[string]string
	fail      bool
	calls     int
}

func (f *fakeTimeSource) Timezones(ctx context.Context) ([]string, error) {
	if f.fail {
		return nil, ErrTimeSourceUnavailable
	}
	return f.timezones, nil
}

func (f *fakeTimeSource) Datetime(ctx context.Context, timezone string) (string, error) {
	f.calls++
	dt, ok := f.datetimes[timezone]
	if f.fail || !ok {
		return "", errors.Join(ErrTimeSourceUnavailable, errors.New("unknown timezone"))
	}
	return NormalizeDatetime(dt), nil
}

type recordedEvent struct {
	Type    roomevents.EventType
	Room    string
	ConnID  string
	OwnerID string
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *recordingEmitter) Emit(eventType roomevents.EventType, roomName, connectionID, ownerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{eventType, roomName, connectionID, ownerID})
}

func (e *recordingEmitter) types() []roomevents.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]roomevents.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	transport  *fakeTransport
	timeSource *fakeTimeSource
	emitter    *recordingEmitter
	clock      *clockwork.FakeClock
	controller *Controller
	session    *Session
}

func newHarness(ids ...string) *harness {
	transport := newFakeTransport()
	timeSource := &fakeTimeSource{
		timezones: []string{"Europe/Lisbon", "Asia/Tokyo"},
		datetimes: map[string]string{
			"Europe/Lisbon": "2023-05-01T13:00:00.123456+01:00",
			"Asia/Tokyo":    "2023-05-01T21:00:00.654321+09:00",
		},
	}
	emitter := &recordingEmitter{}
	clock := clockwork.NewFakeClockAt(time20230501())
	controller := NewController(transport, timeSource,
		WithEventEmitter(emitter),
		WithClock(clock),
	)
	session := NewSession(controller, transport, timeSource, nil)
	transport.handler = session

	for _, id := range ids {
		transport.connect(id)
	}
	transport.runPending()
	transport.reset()

	return &harness{
		transport:  transport,
		timeSource: timeSource,
		emitter:    emitter,
		clock:      clock,
		controller: controller,
		session:    session,
	}
}
