package bootstrap

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazy-lister/internal/domain/eventbus"
	platformconfig "lazy-lister/internal/platform/config"
	platformerrors "lazy-lister/internal/platform/errors"
	testhelpers "lazy-lister/internal/platform/testing"
)

func testState(t *testing.T, env map[string]string) *appState {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf(`server:
  ip: 127.0.0.1
  port: 3999
log:
  log_level: debug
  log_dir: %s
  log_file: test.log
provider:
  type: gemini
  api_key_env: LISTER_TEST_KEY
observability:
  enabled: true
  metrics_path: /metrics
`, filepath.Join(dir, "logs"))
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	loader := platformconfig.NewLoader().
		WithDotEnv(false).
		WithPath(path).
		WithEnv(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		})
	return &appState{configLoader: loader}
}

func closeState(t *testing.T, state *appState) {
	t.Cleanup(func() {
		if state.observabilityShutdown != nil {
			_ = state.observabilityShutdown(context.Background())
		}
		if state.logger != nil {
			_ = state.logger.Close()
		}
	})
}

func TestInitGraphOrder(t *testing.T) {
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"resolver:configure-dns",
		"eventbus:init",
		"provider:init-vlllm",
	}

	steps := InitGraph()
	require.Len(t, steps, len(want))

	seen := map[string]bool{}
	for i, step := range steps {
		assert.Equal(t, want[i], step.ID)
		for _, dep := range step.DependsOn {
			assert.True(t, seen[dep], "%s depends on later step %s", step.ID, dep)
		}
		seen[step.ID] = true
	}
}

func TestExecuteInitSteps_DependencyNotSatisfied(t *testing.T) {
	steps := []initStep{{
		ID:        "b",
		DependsOn: []string{"a"},
		Execute:   func(context.Context, *appState) error { return nil },
	}}

	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindBootstrap))
	assert.Contains(t, err.Error(), "dependency a not satisfied")

	err = executeInitSteps(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestExecuteInitSteps_TagsStepKind(t *testing.T) {
	steps := []initStep{{
		ID:      "config:load",
		Kind:    platformerrors.KindConfig,
		Execute: func(context.Context, *appState) error { return stderrors.New("bad yaml") },
	}}

	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
	assert.Contains(t, err.Error(), "bad yaml")
}

func TestExecuteInitGraph(t *testing.T) {
	state := testState(t, map[string]string{"LISTER_TEST_KEY": "AIzaSyExampleKey123"})
	closeState(t, state)

	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))
	assert.Equal(t, 3999, state.config.Server.Port)
	assert.NotNil(t, state.logger)
	assert.NotNil(t, state.metrics)
	assert.NotNil(t, state.observabilityShutdown)
	assert.NotNil(t, state.bus)
	assert.False(t, state.dns.Active())
	require.NotNil(t, state.provider)
	assert.True(t, state.provider.Ready())
	assert.Equal(t, platformconfig.DefaultModelName, state.provider.Model())
}

func TestExecuteInitGraph_MissingKeyIsNotFatal(t *testing.T) {
	state := testState(t, nil)
	closeState(t, state)

	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))
	require.NotNil(t, state.provider)
	assert.False(t, state.provider.Ready())
}

func TestExecuteInitGraph_BadConfig(t *testing.T) {
	state := testState(t, map[string]string{"LISTER_PROVIDER_TYPE": "claude"})

	err := executeInitSteps(context.Background(), InitGraph(), state)
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
	assert.Nil(t, state.logger)
}

func uploadBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("image", "item.png")
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.WriteField("prompt", "Sell this"))
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestBuildHTTPHandler(t *testing.T) {
	state := testState(t, nil)
	closeState(t, state)
	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))

	handler, err := buildHTTPHandler(context.Background(), state)
	require.NoError(t, err)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Snap it. List it. Sell it.")

	rec = get("/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Omo, network issues. Try again.")

	rec = get("/openapi.json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lazy Lister API")
	assert.Contains(t, rec.Body.String(), "/api/generate")

	rec = get("/docs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-url="/openapi.json"`)

	body, ct := uploadBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"API Key missing"}`, rec.Body.String())

	state.bus.WaitAsync()
	rec = get("/metrics")
	assert.Contains(t, rec.Body.String(), `lister_listings_total{kind="config",outcome="failed"} 1`)
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	logger, buf := testhelpers.SetupBufferLogger(t)
	logBootstrapGraph(InitGraph(), logger)

	out := buf.String()
	assert.Contains(t, out, "init graph")
	for _, step := range InitGraph() {
		assert.Contains(t, out, step.ID)
	}
}

func TestFinishRun_DrainsBusBeforeClosingLogger(t *testing.T) {
	logger, buf := testhelpers.SetupBufferLogger(t)
	bus := eventbus.New()
	require.NoError(t, eventbus.NewLogHandler(logger).Attach(bus))

	bus.Publish(eventbus.EventSystemError, eventbus.SystemEventData{
		Level:   "error",
		Message: "http server failed",
	})
	finishRun(&appState{bus: bus, logger: logger})

	out := buf.String()
	failed := strings.Index(out, "http server failed")
	stopped := strings.Index(out, "server stopped")
	require.GreaterOrEqual(t, failed, 0)
	require.GreaterOrEqual(t, stopped, 0)
	assert.Less(t, failed, stopped)

	assert.NoError(t, logger.Close())
}
