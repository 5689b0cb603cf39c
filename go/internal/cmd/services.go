package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/tzrooms/go/clients/timezone_api_client"
	"github.com/mcdev12/tzrooms/go/internal/gateway"
	"github.com/mcdev12/tzrooms/go/internal/metrics"
	"github.com/mcdev12/tzrooms/go/internal/roomevents"
	"github.com/mcdev12/tzrooms/go/internal/tzroom"
)

type Services struct {
	Metrics    *metrics.PrometheusCollector
	Gateway    *gateway.Service
	Relay      *roomevents.Relay
	Controller *tzroom.Controller
	State      *tzroom.StateHandler
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Time API client → adapter → controller → session → gateway
	clock := clockwork.NewRealClock()
	collector := metrics.NewPrometheusCollector()

	publisher, err := roomevents.NewPublisher(ctx, cfg.eventsConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	relay := roomevents.NewRelay(publisher, cfg.relayConfig(), clock, collector)

	client := timezone_api_client.NewTimezoneApiClient(cfg.TimeAPI.BaseURL)
	client.SetTimeout(cfg.TimeAPI.Timeout)
	timeSource := tzroom.NewTimeSourceAdapter(client, collector)

	gatewayService := gateway.NewService(cfg.gatewayConfig(), clock, collector)
	cm := gatewayService.ConnectionManager()

	controller := tzroom.NewController(cm, timeSource,
		tzroom.WithEventEmitter(relay),
		tzroom.WithClock(clock),
		tzroom.WithMetrics(collector),
	)
	cm.SetHandler(tzroom.NewSession(controller, cm, timeSource, collector))

	return &Services{
		Metrics:    collector,
		Gateway:    gatewayService,
		Relay:      relay,
		Controller: controller,
		State:      tzroom.NewStateHandler(controller, cm),
	}, nil
}
