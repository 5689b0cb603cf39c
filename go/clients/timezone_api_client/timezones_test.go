package timezone_api_client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/tzrooms/go/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/timezone", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ContentTypeJSON, r.Header.Get(AcceptHeader))
		w.Header().Set("Content-Type", ContentTypeJSON)
		_, _ = w.Write([]byte(`["Europe/Lisbon","America/Argentina/Buenos_Aires"]`))
	})
	mux.HandleFunc("/timezone/Europe/Lisbon", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"abbreviation":"WEST","datetime":"2023-05-01T13:00:00.123456+01:00","timezone":"Europe/Lisbon","utc_offset":"+01:00","dst":true}`))
	})
	mux.HandleFunc("/timezone/America/Argentina/Buenos_Aires", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"timezone":"America/Argentina/Buenos_Aires"}`))
	})
	mux.HandleFunc("/timezone/Broken/Zone", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	mux.HandleFunc("/timezone/Nowhere/Zone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown location"}`, http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetTimezones(t *testing.T) {
	srv := newTestServer(t)
	client := NewTimezoneApiClient(srv.URL + "/")

	zones, err := client.GetTimezones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Europe/Lisbon", "America/Argentina/Buenos_Aires"}, zones)
}

func TestGetZone(t *testing.T) {
	srv := newTestServer(t)
	client := NewTimezoneApiClient(srv.URL)

	tests := []struct {
		name     string
		timezone string
		wantErr  func(t *testing.T, err error)
		datetime string
	}{
		{
			name:     "known zone",
			timezone: "Europe/Lisbon",
			datetime: "2023-05-01T13:00:00.123456+01:00",
		},
		{
			name:     "zone without datetime",
			timezone: "America/Argentina/Buenos_Aires",
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingDatetime)
			},
		},
		{
			name:     "malformed body",
			timezone: "Broken/Zone",
			wantErr: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "failed to unmarshal response")
			},
		},
		{
			name:     "non-2xx status",
			timezone: "Nowhere/Zone",
			wantErr: func(t *testing.T, err error) {
				var statusErr *clients.StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zone, err := client.GetZone(context.Background(), tt.timezone)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, zone)
				tt.wantErr(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.datetime, zone.Datetime)
			assert.Equal(t, tt.timezone, zone.Timezone)
		})
	}
}

func TestNewTimezoneApiClientDefaultsBaseURL(t *testing.T) {
	client := NewTimezoneApiClient("")
	assert.Equal(t, BaseURL, client.BaseURL())
}
