package roomevents

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Publisher delivers room events to an event backend.
type Publisher interface {
	Publish(ctx context.Context, event RoomEvent) error
	Close() error
}

const (
	BackendLog   = "log"
	BackendNATS  = "nats"
	BackendRedis = "redis"
)

// BackendConfig selects and configures the event backend.
type BackendConfig struct {
	Backend string
	NATS    JetStreamConfig
	Redis   RedisConfig
}

// NewPublisher builds the publisher named by cfg.Backend.
func NewPublisher(ctx context.Context, cfg BackendConfig) (Publisher, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLog:
		return NewLogPublisher(), nil
	case BackendNATS:
		return NewJetStreamPublisher(ctx, cfg.NATS)
	case BackendRedis:
		return NewRedisPublisher(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// LogPublisher writes events to the service log. Used in development and
// whenever no broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event RoomEvent) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("room", event.RoomName).
		Str("connection_id", event.ConnectionID).
		Str("owner_id", event.OwnerID).
		Msg("room event")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

type RedisConfig struct {
	Addr          string
	DB            int
	ChannelPrefix string
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		DB:            0,
		ChannelPrefix: "tzroom:events",
	}
}

// RedisPublisher publishes events on redis pub/sub channels named
// "<prefix>:<event type>".
type RedisPublisher struct {
	rdb    *redis.Client
	config RedisConfig
}

// NewRedisPublisher connects to redis and verifies connectivity
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis")

	return &RedisPublisher{rdb: rdb, config: cfg}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event RoomEvent) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}

	channel := event.Topic(p.config.ChannelPrefix, ":")
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_id", event.ID.String()).
		Msg("published to redis")

	return nil
}

func (p *RedisPublisher) Health(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
