package roomevents

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tzrooms/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

type Config struct {
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	// DrainTimeout bounds how long shutdown spends publishing buffered events.
	DrainTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:   256,
		MaxRetries:   3,
		RetryDelay:   500 * time.Millisecond,
		DrainTimeout: 5 * time.Second,
	}
}

// Stats is a snapshot of relay counters.
type Stats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

// Relay forwards room events to a Publisher off the caller's goroutine.
// Emit never blocks: when the buffer is full the event is dropped.
type Relay struct {
	publisher Publisher
	config    Config
	clock     clockwork.Clock
	metrics   metrics.Collector

	events chan RoomEvent
	runCtx context.Context

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewRelay(publisher Publisher, cfg Config, clock clockwork.Clock, m metrics.Collector) *Relay {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultConfig().DrainTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &Relay{
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		metrics:   m,
		events:    make(chan RoomEvent, cfg.BufferSize),
		stopChan:  make(chan struct{}),
	}
}

// Emit queues a lifecycle event. Safe to call from any goroutine.
func (r *Relay) Emit(eventType EventType, roomName, connectionID, ownerID string) {
	event := RoomEvent{
		ID:           uuid.New(),
		Type:         eventType,
		RoomName:     roomName,
		ConnectionID: connectionID,
		OwnerID:      ownerID,
		CreatedAt:    r.clock.Now().UTC(),
	}

	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
		r.metrics.RecordEventDropped(string(eventType))
		log.Warn().
			Str("event_type", string(eventType)).
			Str("room", roomName).
			Msg("room event buffer full, dropping event")
	}
}

func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("event relay already running")
	}
	r.running = true
	r.runCtx = ctx
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	log.Info().
		Int("buffer_size", r.config.BufferSize).
		Int("max_retries", r.config.MaxRetries).
		Msg("event relay started")

	return nil
}

// Stop publishes whatever is still buffered, then closes the publisher.
// Buffered events are published even when the context passed to Start has
// already been cancelled.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("event relay not running")
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()

	// run may have exited on ctx.Done before late emits arrived
	r.drain(r.runCtx)

	log.Info().Int64("published", r.published.Load()).Msg("event relay stopped")
	return r.publisher.Close()
}

func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Relay) Stats() Stats {
	return Stats{
		Published: r.published.Load(),
		Failed:    r.failed.Load(),
		Dropped:   r.dropped.Load(),
		Pending:   len(r.events),
	}
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			r.drain(ctx)
			return
		case <-r.stopChan:
			r.drain(ctx)
			return
		case event := <-r.events:
			if ctx.Err() != nil {
				r.drain(ctx, event)
				return
			}
			r.process(ctx, event)
		}
	}
}

// drain publishes pending and then the buffered events on a context that
// survives cancellation of ctx but is bounded by DrainTimeout.
func (r *Relay) drain(ctx context.Context, pending ...RoomEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.DrainTimeout)
	defer cancel()

	for _, event := range pending {
		r.process(ctx, event)
	}
	for {
		select {
		case event := <-r.events:
			r.process(ctx, event)
		default:
			return
		}
	}
}

func (r *Relay) process(ctx context.Context, event RoomEvent) {
	if err := r.publishWithRetry(ctx, event); err != nil {
		r.failed.Add(1)
		r.metrics.RecordEventPublished(string(event.Type), false)
		log.Error().
			Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Msg("failed to publish room event")
		return
	}
	r.published.Add(1)
	r.metrics.RecordEventPublished(string(event.Type), true)
}

func (r *Relay) publishWithRetry(ctx context.Context, event RoomEvent) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(r.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish room event, retrying")
			continue
		}

		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}
