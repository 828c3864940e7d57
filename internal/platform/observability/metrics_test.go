package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazy-lister/internal/platform/logging"
)

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := NewMetrics()

	m.RecordHTTPRequest("POST", "/api/generate", 200, 120*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/generate", 200, 80*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/generate", 400, time.Millisecond)
	m.RecordHTTPRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/api/generate", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/api/generate", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestMetrics_ObserveProviderCall(t *testing.T) {
	m := NewMetrics()

	m.ObserveProviderCall("gemini", "gemini-2.0-flash", nil, time.Second)
	m.ObserveProviderCall("gemini", "gemini-2.0-flash", errors.New("quota"), time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequestsTotal.WithLabelValues("gemini", "gemini-2.0-flash", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequestsTotal.WithLabelValues("gemini", "gemini-2.0-flash", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.providerRequestDuration))
}

func TestMetrics_RecordListing(t *testing.T) {
	m := NewMetrics()

	m.RecordListing(true, "")
	m.RecordListing(false, "provider")
	m.ObserveImageSize(2048)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.listingsTotal.WithLabelValues("generated", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listingsTotal.WithLabelValues("failed", "provider")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.imageBytes))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	m.ObserveProviderCall("gemini", "m", nil, time.Millisecond)
	m.RecordListing(true, "")
	m.ObserveImageSize(1)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordListing(true, "")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `lister_listings_total{kind="none",outcome="generated"} 1`)
}

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriter(&buf, "debug")

	metrics, shutdown, err := Setup(context.Background(), Config{Enabled: true, MetricsPath: "/metrics"}, logger)
	require.NoError(t, err)
	require.NotNil(t, metrics)
	assert.True(t, Enabled())

	_, end := StartSpan(context.Background(), "listing", "generate")
	end(errors.New("boom"))
	assert.Contains(t, buf.String(), "obs span end")
	assert.Contains(t, buf.String(), "boom")

	require.NoError(t, shutdown(context.Background()))

	metrics, _, err = Setup(context.Background(), Config{}, logger)
	require.NoError(t, err)
	assert.Nil(t, metrics)
	assert.False(t, Enabled())
}
