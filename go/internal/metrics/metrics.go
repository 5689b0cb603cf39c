package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tzrooms"

// Collector defines the interface for collecting service metrics
type Collector interface {
	SetConnections(n int)
	SetRooms(n int)
	RecordRequest(event string, success bool)
	RecordTimeSourceCall(operation string, success bool, duration time.Duration)
	RecordEventPublished(eventType string, success bool)
	RecordEventDropped(eventType string)
}

// NoOpCollector is a no-op implementation for when metrics aren't needed
type NoOpCollector struct{}

func (NoOpCollector) SetConnections(n int)                                                        {}
func (NoOpCollector) SetRooms(n int)                                                              {}
func (NoOpCollector) RecordRequest(event string, success bool)                                    {}
func (NoOpCollector) RecordTimeSourceCall(operation string, success bool, duration time.Duration) {}
func (NoOpCollector) RecordEventPublished(eventType string, success bool)                         {}
func (NoOpCollector) RecordEventDropped(eventType string)                                         {}

// PrometheusCollector implements Collector on a private prometheus registry.
type PrometheusCollector struct {
	registry *prometheus.Registry

	connections      prometheus.Gauge
	rooms            prometheus.Gauge
	requests         *prometheus.CounterVec
	timeSourceCalls  *prometheus.CounterVec
	timeSourceTiming *prometheus.HistogramVec
	eventsPublished  *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
}

func NewPrometheusCollector() *PrometheusCollector {
	m := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open WebSocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Number of timezone rooms in the registry.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Inbound WebSocket requests by event and outcome.",
		}, []string{"event", "status"}),
		timeSourceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_source_calls_total",
			Help:      "Calls to the external timezone API by operation and outcome.",
		}, []string{"operation", "status"}),
		timeSourceTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "time_source_call_duration_seconds",
			Help:      "Latency of external timezone API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_events_published_total",
			Help:      "Room lifecycle events handed to the event backend.",
		}, []string{"event_type", "status"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_events_dropped_total",
			Help:      "Room lifecycle events dropped because the relay buffer was full.",
		}, []string{"event_type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.rooms,
		m.requests,
		m.timeSourceCalls,
		m.timeSourceTiming,
		m.eventsPublished,
		m.eventsDropped,
	)

	return m
}

// Handler exposes the collected metrics at /metrics
func (m *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PrometheusCollector) SetConnections(n int) {
	m.connections.Set(float64(n))
}

func (m *PrometheusCollector) SetRooms(n int) {
	m.rooms.Set(float64(n))
}

func (m *PrometheusCollector) RecordRequest(event string, success bool) {
	m.requests.WithLabelValues(event, status(success)).Inc()
}

func (m *PrometheusCollector) RecordTimeSourceCall(operation string, success bool, duration time.Duration) {
	m.timeSourceCalls.WithLabelValues(operation, status(success)).Inc()
	m.timeSourceTiming.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusCollector) RecordEventPublished(eventType string, success bool) {
	m.eventsPublished.WithLabelValues(eventType, status(success)).Inc()
}

func (m *PrometheusCollector) RecordEventDropped(eventType string) {
	m.eventsDropped.WithLabelValues(eventType).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
