package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouterServesHealthAndMetrics(t *testing.T) {
	ts := httptest.NewServer(NewRouter())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	SetLinksFound(2)
	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), "profilegrab_links_found 2")

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")); val < 2 {
		t.Errorf("expected middleware to count requests, got %f", val)
	}
}

func TestStartAndShutdown(t *testing.T) {
	srv, err := Start("127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}

func TestStartInvalidAddr(t *testing.T) {
	_, err := Start("256.0.0.1:bad", zap.NewNop())
	assert.Error(t, err)
}
