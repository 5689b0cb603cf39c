package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/tzrooms/go/clients/timezone_api_client"
	"github.com/mcdev12/tzrooms/go/internal/gateway"
	"github.com/mcdev12/tzrooms/go/internal/roomevents"
)

type Config struct {
	Server struct {
		Port               string   `yaml:"port"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	TimeAPI struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"time_api"`

	WebSocket struct {
		PingInterval   time.Duration `yaml:"ping_interval"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		MaxMessageSize int64         `yaml:"max_message_size"`
	} `yaml:"websocket"`

	Events struct {
		Backend            string `yaml:"backend"`
		NATSURL            string `yaml:"nats_url"`
		SubjectPrefix      string `yaml:"subject_prefix"`
		RedisAddr          string `yaml:"redis_addr"`
		RedisDB            int    `yaml:"redis_db"`
		RedisChannelPrefix string `yaml:"redis_channel_prefix"`
		Buffer             int    `yaml:"buffer"`
	} `yaml:"events"`
}

func defaultConfig() *Config {
	var cfg Config
	conn := gateway.DefaultConnectionConfig()
	nats := roomevents.DefaultJetStreamConfig()
	redis := roomevents.DefaultRedisConfig()

	cfg.Server.Port = "8080"
	cfg.Server.CORSAllowedOrigins = []string{"*"}
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.TimeAPI.BaseURL = timezone_api_client.BaseURL
	cfg.TimeAPI.Timeout = 30 * time.Second
	cfg.WebSocket.PingInterval = conn.PingInterval
	cfg.WebSocket.ReadTimeout = conn.ReadTimeout
	cfg.WebSocket.WriteTimeout = conn.WriteTimeout
	cfg.WebSocket.MaxMessageSize = conn.MaxMessageSize
	cfg.Events.Backend = roomevents.BackendLog
	cfg.Events.NATSURL = nats.URL
	cfg.Events.SubjectPrefix = nats.SubjectPrefix
	cfg.Events.RedisAddr = redis.Addr
	cfg.Events.RedisDB = redis.DB
	cfg.Events.RedisChannelPrefix = redis.ChannelPrefix
	cfg.Events.Buffer = roomevents.DefaultConfig().BufferSize
	return &cfg
}

// loadConfig layers defaults, the optional YAML file at path and the
// environment, in that order.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// optional
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	if origins := splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")); len(origins) > 0 {
		c.Server.CORSAllowedOrigins = origins
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.TimeAPI.BaseURL = getEnv("TIME_API_BASE_URL", c.TimeAPI.BaseURL)
	c.TimeAPI.Timeout = getEnvAsDuration("TIME_API_TIMEOUT", c.TimeAPI.Timeout)

	c.WebSocket.PingInterval = getEnvAsDuration("WS_PING_INTERVAL", c.WebSocket.PingInterval)
	c.WebSocket.ReadTimeout = getEnvAsDuration("WS_READ_TIMEOUT", c.WebSocket.ReadTimeout)
	c.WebSocket.WriteTimeout = getEnvAsDuration("WS_WRITE_TIMEOUT", c.WebSocket.WriteTimeout)
	c.WebSocket.MaxMessageSize = int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", int(c.WebSocket.MaxMessageSize)))

	c.Events.Backend = getEnv("EVENTS_BACKEND", c.Events.Backend)
	c.Events.NATSURL = getEnv("NATS_URL", c.Events.NATSURL)
	c.Events.SubjectPrefix = getEnv("EVENTS_SUBJECT_PREFIX", c.Events.SubjectPrefix)
	c.Events.RedisAddr = getEnv("REDIS_ADDR", c.Events.RedisAddr)
	c.Events.RedisDB = getEnvAsInt("REDIS_DB", c.Events.RedisDB)
	c.Events.RedisChannelPrefix = getEnv("REDIS_CHANNEL_PREFIX", c.Events.RedisChannelPrefix)
	c.Events.Buffer = getEnvAsInt("EVENTS_BUFFER", c.Events.Buffer)
}

func (c *Config) gatewayConfig() gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.ConnectionConfig.PingInterval = c.WebSocket.PingInterval
	cfg.ConnectionConfig.ReadTimeout = c.WebSocket.ReadTimeout
	cfg.ConnectionConfig.WriteTimeout = c.WebSocket.WriteTimeout
	cfg.ConnectionConfig.MaxMessageSize = c.WebSocket.MaxMessageSize
	return cfg
}

func (c *Config) eventsConfig() roomevents.BackendConfig {
	nats := roomevents.DefaultJetStreamConfig()
	nats.URL = c.Events.NATSURL
	nats.SubjectPrefix = c.Events.SubjectPrefix

	return roomevents.BackendConfig{
		Backend: c.Events.Backend,
		NATS:    nats,
		Redis: roomevents.RedisConfig{
			Addr:          c.Events.RedisAddr,
			DB:            c.Events.RedisDB,
			ChannelPrefix: c.Events.RedisChannelPrefix,
		},
	}
}

func (c *Config) relayConfig() roomevents.Config {
	cfg := roomevents.DefaultConfig()
	cfg.BufferSize = c.Events.Buffer
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
