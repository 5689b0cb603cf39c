package timezone_api_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// ErrMissingDatetime is returned when a zone lookup succeeds but carries no datetime.
var ErrMissingDatetime = errors.New("zone response has no datetime")

type Zone struct {
	Abbreviation string `json:"abbreviation"`
	Datetime     string `json:"datetime"`
	DayOfWeek    int    `json:"day_of_week"`
	DST          bool   `json:"dst"`
	Timezone     string `json:"timezone"`
	UnixTime     int64  `json:"unixtime"`
	UTCOffset    string `json:"utc_offset"`
}

func (c *TimezoneApiClient) GetTimezones(ctx context.Context) ([]string, error) {
	body, err := c.Get(ctx, TimezonesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get timezones: %w", err)
	}

	var zones []string
	if err := json.Unmarshal(body, &zones); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	return zones, nil
}

func (c *TimezoneApiClient) GetZone(ctx context.Context, timezone string) (*Zone, error) {
	endpoint := fmt.Sprintf("%s/%s", TimezonesEndpoint, escapeZone(timezone))
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get zone %s: %w", timezone, err)
	}

	var zone Zone
	if err := json.Unmarshal(body, &zone); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	if zone.Datetime == "" {
		return nil, fmt.Errorf("zone %s: %w", timezone, ErrMissingDatetime)
	}

	return &zone, nil
}

// escapeZone escapes each path segment of an IANA identifier such as
// "America/Argentina/Buenos_Aires" while keeping the separators.
func escapeZone(timezone string) string {
	u := url.URL{Path: timezone}
	return u.EscapedPath()
}
