package roomevents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/tzrooms/go/internal/metrics"
)

type recordingPublisher struct {
	mu       sync.Mutex
	events   []RoomEvent
	failures int
	closed   bool
}

func (p *recordingPublisher) Publish(ctx context.Context, event RoomEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) snapshot() []RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RoomEvent(nil), p.events...)
}

func TestRelayPublishesInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	relay := NewRelay(pub, DefaultConfig(), clockwork.NewRealClock(), metrics.NoOpCollector{})
	require.NoError(t, relay.Start(context.Background()))

	relay.Emit(EventTypeRoomCreated, "lobby", "c1", "c1")
	relay.Emit(EventTypeMemberJoined, "lobby", "c2", "c1")
	relay.Emit(EventTypeRoomDeleted, "lobby", "", "")

	assert.Eventually(t, func() bool {
		return len(pub.snapshot()) == 3
	}, time.Second, 10*time.Millisecond)

	events := pub.snapshot()
	assert.Equal(t, EventTypeRoomCreated, events[0].Type)
	assert.Equal(t, EventTypeMemberJoined, events[1].Type)
	assert.Equal(t, "c2", events[1].ConnectionID)
	assert.Equal(t, EventTypeRoomDeleted, events[2].Type)
	assert.NotEqual(t, events[0].ID, events[1].ID)

	require.NoError(t, relay.Stop())
	assert.True(t, pub.closed)
	assert.Equal(t, int64(3), relay.Stats().Published)
}

func TestRelayRetriesFailedPublish(t *testing.T) {
	pub := &recordingPublisher{failures: 2}
	cfg := Config{BufferSize: 4, MaxRetries: 3, RetryDelay: time.Millisecond}
	relay := NewRelay(pub, cfg, nil, nil)
	require.NoError(t, relay.Start(context.Background()))
	defer relay.Stop()

	relay.Emit(EventTypeOwnerChanged, "lobby", "", "c2")

	assert.Eventually(t, func() bool {
		return len(pub.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), relay.Stats().Failed)
}

func TestRelayGivesUpAfterMaxRetries(t *testing.T) {
	pub := &recordingPublisher{failures: 10}
	cfg := Config{BufferSize: 4, MaxRetries: 1, RetryDelay: time.Millisecond}
	relay := NewRelay(pub, cfg, nil, nil)
	require.NoError(t, relay.Start(context.Background()))
	defer relay.Stop()

	relay.Emit(EventTypeMemberLeft, "lobby", "c1", "")

	assert.Eventually(t, func() bool {
		return relay.Stats().Failed == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, pub.snapshot())
}

func TestRelayDropsWhenBufferFull(t *testing.T) {
	pub := &recordingPublisher{}
	relay := NewRelay(pub, Config{BufferSize: 1}, nil, nil)

	// not started, so nothing drains the buffer
	relay.Emit(EventTypeRoomCreated, "a", "c1", "c1")
	relay.Emit(EventTypeRoomCreated, "b", "c2", "c2")

	stats := relay.Stats()
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, 1, stats.Pending)
}

func TestRelayStopDrainsBuffer(t *testing.T) {
	pub := &recordingPublisher{}
	relay := NewRelay(pub, Config{BufferSize: 8}, nil, nil)

	relay.Emit(EventTypeRoomCreated, "a", "c1", "c1")
	relay.Emit(EventTypeRoomDeleted, "a", "", "")

	require.NoError(t, relay.Start(context.Background()))
	require.NoError(t, relay.Stop())

	assert.Len(t, pub.snapshot(), 2)
}

func TestRelayStopDrainsAfterContextCancel(t *testing.T) {
	pub := &recordingPublisher{}
	relay := NewRelay(pub, Config{BufferSize: 64}, nil, nil)

	for i := 0; i < 50; i++ {
		relay.Emit(EventTypeMemberJoined, "lobby", "c1", "c0")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, relay.Start(ctx))
	require.NoError(t, relay.Stop())

	assert.Len(t, pub.snapshot(), 50)
	assert.Equal(t, int64(50), relay.Stats().Published)
	assert.Zero(t, relay.Stats().Failed)
	assert.Zero(t, relay.Stats().Pending)
}

func TestRelayStopPublishesEventsEmittedAfterCancel(t *testing.T) {
	pub := &recordingPublisher{}
	relay := NewRelay(pub, Config{BufferSize: 8}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, relay.Start(ctx))
	cancel()

	relay.Emit(EventTypeMemberLeft, "lobby", "c1", "")
	relay.Emit(EventTypeRoomDeleted, "lobby", "", "")
	require.NoError(t, relay.Stop())

	events := pub.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeMemberLeft, events[0].Type)
	assert.Equal(t, EventTypeRoomDeleted, events[1].Type)
}

func TestRelayStartStopTwice(t *testing.T) {
	relay := NewRelay(&recordingPublisher{}, DefaultConfig(), nil, nil)
	require.NoError(t, relay.Start(context.Background()))
	assert.Error(t, relay.Start(context.Background()))
	require.NoError(t, relay.Stop())
	assert.Error(t, relay.Stop())
}

func TestRelayTimestampsFromClock(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	pub := &recordingPublisher{}
	relay := NewRelay(pub, DefaultConfig(), fake, nil)
	require.NoError(t, relay.Start(context.Background()))

	relay.Emit(EventTypeRoomCreated, "lobby", "c1", "c1")
	assert.Eventually(t, func() bool {
		return len(pub.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, relay.Stop())

	assert.Equal(t, fake.Now(), pub.snapshot()[0].CreatedAt)
}

func TestRoomEventTopic(t *testing.T) {
	e := RoomEvent{Type: EventTypeMemberJoined}
	assert.Equal(t, "tzroom.events.member_joined", e.Topic("tzroom.events", "."))
	assert.Equal(t, "tzroom:events:member_joined", e.Topic("tzroom:events", ":"))
}

func TestNewPublisherLogBackend(t *testing.T) {
	p, err := NewPublisher(context.Background(), BackendConfig{Backend: "log"})
	require.NoError(t, err)
	assert.IsType(t, &LogPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), RoomEvent{Type: EventTypeRoomCreated}))

	_, err = NewPublisher(context.Background(), BackendConfig{Backend: "kafka"})
	assert.Error(t, err)
}
