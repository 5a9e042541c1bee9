package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHelpersRecordAndExpose(t *testing.T) {
	Init()
	Init() // idempotent

	ObserveSearchFinished("completed", 2*time.Second)
	ObserveStoreSearch("zalando", "completed", 300*time.Millisecond)
	IncRateLimited("exceeded")
	ObserveHTTPRequest(http.MethodPost, "/api/searches", http.StatusAccepted, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "stylehound_searches_total")
	require.Contains(t, string(body), "stylehound_store_searches_total")
	require.Contains(t, string(body), "stylehound_rate_limit_rejections_total")
	require.Contains(t, string(body), "http_requests_total")
}

func TestHTTPStatusLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2xx", httpStatusLabel(202))
	require.Equal(t, "3xx", httpStatusLabel(301))
	require.Equal(t, "4xx", httpStatusLabel(429))
	require.Equal(t, "5xx", httpStatusLabel(503))
	require.Equal(t, "other", httpStatusLabel(111))
}
