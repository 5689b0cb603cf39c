package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerRoutes(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	require.NoError(t, err)
	go services.Gateway.Start(ctx)

	server := httptest.NewServer(setupServer(cfg, services).Handler)
	defer server.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := get("/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	status, body = get("/api/rooms")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)

	status, body = get("/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "tzrooms_connections")

	// the relay is not started in this test
	status, _ = get("/health/events")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, body = get("/info")
	assert.Equal(t, http.StatusOK, status)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &info))
	assert.Equal(t, "tzrooms", info["service"])
	assert.EqualValues(t, 0, info["connections"])
}
