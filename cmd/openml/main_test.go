package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/openml-client/internal/testutil"
	"github.com/Sternrassler/openml-client/pkg/backend"
	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/Sternrassler/openml-client/pkg/config"
	"github.com/Sternrassler/openml-client/pkg/resource"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig stores a config pointing both API versions at mock and
// returns its path.
func writeTestConfig(t *testing.T, mock *testutil.MockServer) string {
	t.Helper()

	cfg := config.Default()
	cfg.APIs[resource.V1] = config.APIConfig{Server: mock.URL(), BasePath: "api/v1/xml/", APIKey: "secret-key"}
	cfg.APIs[resource.V2] = config.APIConfig{Server: mock.URL()}
	cfg.Connection.RetryPolicy = client.PolicyRobot
	cfg.Connection.Retries = 0
	cfg.Connection.Timeout = 5 * time.Second
	cfg.Cache.Dir = t.TempDir()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, config.Save(cfg, path))
	return path
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

func TestGetCommand(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/api/v1/xml/task/31", testutil.NewXMLResponse(`<oml:task><oml:task_id>31</oml:task_id></oml:task>`))
	path := writeTestConfig(t, mock)

	stdout, err := run(t, "--config", path, "get", "task", "31")
	require.NoError(t, err)
	assert.Contains(t, stdout, "<oml:task_id>31</oml:task_id>")

	_, err = run(t, "--config", path, "get", "task", "31")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.GetRequestCount(), "second get must be cached")
}

func TestGetCommand_InvalidArgs(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	path := writeTestConfig(t, mock)

	_, err := run(t, "--config", path, "get", "model", "1")
	assert.Error(t, err)

	_, err = run(t, "--config", path, "get", "task", "abc")
	assert.ErrorContains(t, err, "invalid id")

	_, err = run(t, "--config", path, "get", "task")
	assert.Error(t, err)
	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestTagCommand_Fallback(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/api/v1/xml/data/tag", testutil.NewXMLResponse(
		`<oml:data_tag xmlns:oml="http://openml.org/openml"><oml:id>61</oml:id><oml:tag>iris</oml:tag><oml:tag>mine</oml:tag></oml:data_tag>`))
	path := writeTestConfig(t, mock)

	stdout, err := run(t, "--config", path, "--api-version", "v2", "--fallback", "v1", "tag", "dataset", "61", "mine")
	require.NoError(t, err)
	assert.Equal(t, "iris\nmine\n", stdout)

	_, err = run(t, "--config", path, "--api-version", "v2", "tag", "dataset", "61", "mine")
	assert.ErrorIs(t, err, resource.ErrNotSupported)
}

func TestListCommand(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/api/v1/xml/data/list/limit/2/tag/study_14", testutil.NewXMLResponse(`<oml:data/>`))
	path := writeTestConfig(t, mock)

	stdout, err := run(t, "--config", path, "list", "dataset", "--limit", "2", "--filter", "tag=study_14")
	require.NoError(t, err)
	assert.Contains(t, stdout, "<oml:data/>")

	_, err = run(t, "--config", path, "list", "dataset", "--filter", "broken")
	assert.ErrorContains(t, err, "key=value")
}

func TestFetchCommand(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/api/v1/xml/evaluationmeasure/list", testutil.NewXMLResponse(`<oml:evaluation_measures/>`))
	path := writeTestConfig(t, mock)

	_, err := run(t, "--config", path, "fetch", "evaluationmeasure/list", "--no-cache")
	require.NoError(t, err)
	_, err = run(t, "--config", path, "fetch", "evaluationmeasure/list", "--no-cache")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.GetRequestCount())
	assert.Equal(t, "secret-key", mock.LastQuery().Get("api_key"))
}

func TestDownloadCommand(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/data/v1/download/61", testutil.NewXMLResponse("@relation iris\n"))
	path := writeTestConfig(t, mock)

	stdout, err := run(t, "--config", path, "download", mock.URL()+"data/v1/download/61", "--file-name", "iris.arff")
	require.NoError(t, err)

	stored := strings.TrimSpace(stdout)
	assert.Equal(t, "iris.arff", filepath.Base(stored))
	content, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "@relation iris\n", string(content))
}

func TestConfigCommands(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	path := writeTestConfig(t, mock)

	stdout, err := run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "retry_policy: robot")
	assert.Contains(t, stdout, "******-key")
	assert.NotContains(t, stdout, "secret-key")

	_, err = run(t, "--config", path, "config", "set", "connection.retries", "4")
	require.NoError(t, err)

	stdout, err = run(t, "--config", path, "config", "get", "connection.retries")
	require.NoError(t, err)
	assert.Equal(t, "4\n", stdout)

	stdout, err = run(t, "--config", path, "--set", "connection.retries=1", "config", "get", "connection.retries")
	require.NoError(t, err)
	assert.Equal(t, "1\n", stdout, "--set overrides the file")

	_, err = run(t, "--config", path, "config", "set", "connection.retry_policy", "careful")
	assert.Error(t, err)

	stdout, err = run(t, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", stdout)
}

func TestMaskAPIKeys(t *testing.T) {
	cfg := config.Default()
	cfg.APIs[resource.V1] = config.APIConfig{Server: "https://x/", APIKey: "abcdef123456"}
	cfg.APIs[resource.V2] = config.APIConfig{Server: "https://y/", APIKey: "abc"}

	masked := maskAPIKeys(cfg)
	assert.Equal(t, "********3456", masked.APIs[resource.V1].APIKey)
	assert.Equal(t, "***", masked.APIs[resource.V2].APIKey)
	assert.Equal(t, "abcdef123456", cfg.APIs[resource.V1].APIKey, "original must not change")
}

// newTestMux builds the serve handlers over mock.
func newTestMux(t *testing.T, mock *testutil.MockServer) (*http.ServeMux, *backend.Backend) {
	t.Helper()

	cfg := config.Default()
	cfg.APIs[resource.V1] = config.APIConfig{Server: mock.URL(), BasePath: "api/v1/xml/"}
	cfg.Connection.RetryPolicy = client.PolicyRobot
	cfg.Connection.Retries = 0
	cfg.Cache.Dir = t.TempDir()

	b, err := backend.Build(cfg, backend.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return newServeMux(b, 5*time.Second), b
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mux, b := newTestMux(t, mock)

	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("not_ready_cache_removed", func(t *testing.T) {
		require.NoError(t, os.RemoveAll(b.Cache().Dir()))

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestAPIProxy(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/api/v1/xml/task/31", testutil.NewXMLResponse(`<oml:task/>`))
	mock.SetResponse("/api/v1/xml/task/0", testutil.NewOMLErrorResponse(http.StatusPreconditionFailed, 151, "Unknown task"))
	mock.SetResponse("/api/v1/xml/task/500", testutil.NewServerErrorResponse())
	mux, _ := newTestMux(t, mock)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		return w
	}

	first := get("/api/v1/task/31")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "<oml:task/>", first.Body.String())
	assert.Contains(t, first.Header().Get("Content-Type"), "xml")

	second := get("/api/v1/task/31")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	reset := get("/api/v1/task/31?reset_cache=true")
	assert.Equal(t, "MISS", reset.Header().Get("X-Cache"))
	assert.Equal(t, 2, mock.GetPathCount("/api/v1/xml/task/31"))
	assert.Empty(t, mock.LastQuery().Get("reset_cache"))

	upstream := get("/api/v1/task/0")
	assert.Equal(t, http.StatusPreconditionFailed, upstream.Code)
	assert.Contains(t, upstream.Body.String(), "Unknown task")

	failed := get("/api/v1/task/500")
	assert.Equal(t, http.StatusBadGateway, failed.Code)

	assert.Equal(t, http.StatusNotFound, get("/api/v2/task/1").Code, "v2 is not configured")
	assert.Equal(t, http.StatusNotFound, get("/api/v9/task/1").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/v1").Code)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/task/31", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/api/v1/xml/flow/1", testutil.NewXMLResponse(`<oml:flow/>`))
	mux, _ := newTestMux(t, mock)

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/flow/1", nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	bodyStr := w.Body.String()
	if !strings.Contains(bodyStr, "openml_requests_total") {
		t.Error("Expected metrics output to contain openml_requests_total")
	}
	if !strings.Contains(bodyStr, "openml_cache_misses_total") {
		t.Error("Expected metrics output to contain openml_cache_misses_total")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "verbose", "config", "path")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestListCommand_All(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/api/v1/xml/task/list/limit/2", testutil.NewXMLResponse(`<page>0</page>`))
	mock.SetResponse("/api/v1/xml/task/list/limit/2/offset/2", testutil.NewXMLResponse(`<page>2</page>`))
	mock.SetResponse("/api/v1/xml/task/list/limit/2/offset/4", testutil.NewOMLErrorResponse(http.StatusPreconditionFailed, 372, "No results"))
	path := writeTestConfig(t, mock)

	stdout, err := run(t, "--config", path, "list", "task", "--all", "--batch-size", "2", "--concurrency", "3")
	require.NoError(t, err)
	assert.Equal(t, "<page>0</page>\n<page>2</page>\n", stdout)
}
