package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckMux(t *testing.T) {
	// --- Arrange ---
	a, _ := SetupAppTest(t, map[string]string{"BUILD": `target "t" {}`})
	srv := httptest.NewServer(a.healthCheckMux())
	defer srv.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	// --- Act ---
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx, Command{Name: CmdShow, Specs: []string{"//:t"}}, io.Discard))
	healthCode, health := get("/health")
	metricsCode, metrics := get("/metrics")

	// --- Assert ---
	assert.Equal(t, http.StatusOK, healthCode)
	assert.Contains(t, health, "OK nodes=")
	assert.Equal(t, http.StatusOK, metricsCode)
	assert.Contains(t, metrics, "rulegrid_")
}
