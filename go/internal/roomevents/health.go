package roomevents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HealthReporter is implemented by publishers that hold a broker connection.
type HealthReporter interface {
	Health(ctx context.Context) error
}

type HealthStatus struct {
	Healthy         bool     `json:"healthy"`
	RelayRunning    bool     `json:"relay_running"`
	BrokerConnected bool     `json:"broker_connected"`
	Published       int64    `json:"events_published"`
	Failed          int64    `json:"events_failed"`
	Dropped         int64    `json:"events_dropped"`
	Pending         int      `json:"pending_events"`
	Errors          []string `json:"errors"`
}

// HealthChecker reports on the relay and its backend
type HealthChecker struct {
	relay *Relay
	// Pending events above this fraction of the buffer are reported
	backlogThreshold float64
}

func NewHealthChecker(relay *Relay) *HealthChecker {
	return &HealthChecker{relay: relay, backlogThreshold: 0.8}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	stats := h.relay.Stats()
	status := HealthStatus{
		Healthy:         true,
		RelayRunning:    h.relay.Running(),
		BrokerConnected: true,
		Published:       stats.Published,
		Failed:          stats.Failed,
		Dropped:         stats.Dropped,
		Pending:         stats.Pending,
		Errors:          []string{},
	}

	if !status.RelayRunning {
		status.Healthy = false
		status.Errors = append(status.Errors, "relay not running")
	}

	// Check broker connection
	if reporter, ok := h.relay.publisher.(HealthReporter); ok {
		if err := reporter.Health(ctx); err != nil {
			status.BrokerConnected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("broker unavailable: %v", err))
		}
	}

	if float64(stats.Pending) > h.backlogThreshold*float64(h.relay.config.BufferSize) {
		status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", stats.Pending))
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode events health response")
	}
}
