package tzroom

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tzrooms/go/clients/timezone_api_client"
	"github.com/mcdev12/tzrooms/go/internal/metrics"
)

// TimeSource provides timezone identifiers and the current datetime in a zone.
type TimeSource interface {
	Timezones(ctx context.Context) ([]string, error)
	Datetime(ctx context.Context, timezone string) (string, error)
}

// TimeSourceAdapter is the TimeSource backed by the external timezone API.
// Every failure is logged and returned wrapped in ErrTimeSourceUnavailable.
type TimeSourceAdapter struct {
	client  *timezone_api_client.TimezoneApiClient
	metrics metrics.Collector
}

func NewTimeSourceAdapter(client *timezone_api_client.TimezoneApiClient, m metrics.Collector) *TimeSourceAdapter {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &TimeSourceAdapter{client: client, metrics: m}
}

func (a *TimeSourceAdapter) Timezones(ctx context.Context) ([]string, error) {
	start := time.Now()
	timezones, err := a.client.GetTimezones(ctx)
	a.metrics.RecordTimeSourceCall("timezones", err == nil, time.Since(start))
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch timezones")
		return nil, fmt.Errorf("%w: %w", ErrTimeSourceUnavailable, err)
	}
	return timezones, nil
}

// Datetime returns the normalized current datetime for timezone.
func (a *TimeSourceAdapter) Datetime(ctx context.Context, timezone string) (string, error) {
	start := time.Now()
	zone, err := a.client.GetZone(ctx, timezone)
	a.metrics.RecordTimeSourceCall("datetime", err == nil, time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("timezone", timezone).Msg("failed to fetch datetime")
		return "", fmt.Errorf("%w: %w", ErrTimeSourceUnavailable, err)
	}
	return NormalizeDatetime(zone.Datetime), nil
}
