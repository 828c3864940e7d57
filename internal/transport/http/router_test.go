package httptransport

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazy-lister/internal/platform/errors"
	"lazy-lister/internal/platform/observability"
	testhelpers "lazy-lister/internal/platform/testing"
)

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestBuild_RequiresConfig(t *testing.T) {
	_, err := Build(Options{})
	assert.Error(t, err)
}

func TestRouter_HealthAndRequestID(t *testing.T) {
	router, err := Build(Options{Config: testhelpers.SetupTestConfig(t)})
	require.NoError(t, err)

	rec := serve(router.Engine, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "client-123")
	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)
	assert.Equal(t, "client-123", rec.Header().Get(RequestIDHeader))
}

func TestRouter_UnknownAPIRouteIsJSON(t *testing.T) {
	router, err := Build(Options{Config: testhelpers.SetupTestConfig(t)})
	require.NoError(t, err)

	rec := serve(router.Engine, http.MethodGet, "/api/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
}

func TestRouter_RecoveryAndMetrics(t *testing.T) {
	logger, buf := testhelpers.SetupBufferLogger(t)
	metrics := observability.NewMetrics()
	router, err := Build(Options{Config: testhelpers.SetupTestConfig(t), Logger: logger, Metrics: metrics})
	require.NoError(t, err)

	router.API.GET("/explode", func(*gin.Context) { panic("kaboom") })

	rec := serve(router.Engine, http.MethodGet, "/api/explode")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to generate listing","details":"Unknown error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "kaboom")

	rec = serve(router.Engine, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lister_http_requests_total{method="GET",route="/api/explode",status="500"} 1`)
}

func TestRouter_StaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<title>Lazy Lister</title>"), 0o644))

	cfg := testhelpers.SetupTestConfig(t)
	cfg.Server.StaticDir = dir
	router, err := Build(Options{Config: cfg})
	require.NoError(t, err)

	rec := serve(router.Engine, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lazy Lister")

	rec = serve(router.Engine, http.MethodGet, "/items/42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lazy Lister")

	rec = serve(router.Engine, http.MethodGet, "/api/items")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   ErrorResponse
	}{
		{"input", errors.New(errors.KindInput, "op", "No image found"), 400, ErrorResponse{Error: "No image found"}},
		{"config", errors.New(errors.KindConfig, "op", "API Key missing"), 500, ErrorResponse{Error: "API Key missing"}},
		{"provider", errors.Wrap(errors.KindProvider, "op", "generate", assertErr("quota exceeded")), 500,
			ErrorResponse{Error: GenericFailure, Details: "quota exceeded"}},
		{"provider without cause", errors.New(errors.KindProvider, "op", "empty response"), 500,
			ErrorResponse{Error: GenericFailure, Details: "empty response"}},
		{"untagged", assertErr("odd"), 500, ErrorResponse{Error: GenericFailure, Details: "Unknown error"}},
		{"platform", errors.New(errors.KindPlatform, "op", "disk"), 500, ErrorResponse{Error: GenericFailure, Details: "Unknown error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := StatusForError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, body)
		})
	}
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
