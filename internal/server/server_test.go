package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pipebench/internal/domain/bench"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/config"
	"github.com/GriffinCanCode/pipebench/internal/report"
	"github.com/GriffinCanCode/pipebench/internal/shared/id"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pipeline.Items = 5000
	cfg.Pipeline.QueueCapacity = 64
	cfg.Pipeline.BatchSize = 8
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	return cfg
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(testConfig(), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, srv.Shutdown(context.Background()))
	})
	return srv, ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, false, health["running"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestStartRunAndFetch(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/runs", `{"stages": 3, "items": 4000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var run report.Run
	require.NoError(t, json.Unmarshal(body, &run))
	assert.True(t, id.IsValidRunID(run.RunID))
	assert.Equal(t, 3, run.Stages)
	assert.Equal(t, 4000, run.Received)
	assert.Zero(t, run.Errors)
	assert.Greater(t, run.Mpps, 0.0)
	assert.Len(t, run.StageStats, 3)

	resp, body = do(t, http.MethodGet, ts.URL+"/runs/"+run.RunID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched report.Run
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, run.RunID, fetched.RunID)

	resp, body = do(t, http.MethodGet, ts.URL+"/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Runs    []report.Run   `json:"runs"`
		Summary report.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Runs, 1)
	assert.Equal(t, 1, list.Summary.Completed)
}

func TestStartRunRejectsBadInput(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"stages":`},
		{"capacity not power of two", `{"queue_capacity": 100}`},
		{"zero stages", `{"stages": 0}`},
		{"bad timeout", `{"timeout": "soon"}`},
		{"body over limit", `{"stages": 2, "pad": "` + strings.Repeat("x", 8*1024) + `"}`},
		{"huge corpus and queues", `{"items": 1099511627776, "queue_capacity": 1073741824, "stages": 100000}`},
		{"too many items", `{"items": 1000000000}`},
		{"queues over slot budget", `{"stages": 64, "queue_capacity": 1048576}`},
		{"bulk batch larger than queue", `{"bulk": true, "batch_size": 128, "queue_capacity": 64}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+"/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}
}

func TestGetUnknownRun(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := do(t, http.MethodGet, ts.URL+"/runs/run_missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartRunConflict(t *testing.T) {
	srv, ts := newTestServer(t)

	slow := `{"items": 100, "batch_size": 10, "producer_rate": 200}`
	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(ts.URL+"/runs", "application/json", strings.NewReader(slow))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, srv.Manager().Running, 5*time.Second, time.Millisecond)
	resp, _ := do(t, http.MethodPost, ts.URL+"/runs", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	assert.Equal(t, http.StatusOK, <-done)
}

func TestReportFormats(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := do(t, http.MethodPost, ts.URL+"/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		format      string
		wantStatus  int
		contentType string
		contains    string
	}{
		{"csv", http.StatusOK, "text/csv", "run_id,started_at"},
		{"yaml", http.StatusOK, "application/yaml", "summary:"},
		{"toml", http.StatusOK, "application/toml", "[summary]"},
		{"json", http.StatusOK, "application/json", `"environment"`},
		{"xml", http.StatusBadRequest, "application/json", "unsupported format"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			resp, body := do(t, http.MethodGet, ts.URL+"/report?format="+tt.format, "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), tt.contentType)
			assert.Contains(t, string(body), tt.contains)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := do(t, http.MethodPost, ts.URL+"/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `pipebench_runs_total{outcome="completed"} 1`)
	assert.Contains(t, string(body), `pipebench_http_requests_total{method="POST",path="/runs",status="200"} 1`)

	resp, body = do(t, http.MethodGet, ts.URL+"/stats", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"runs_completed":1`)
}

func TestLiveFeed(t *testing.T) {
	srv, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Manager().Subscribers() == 1 }, 5*time.Second, time.Millisecond)

	resp, _ := do(t, http.MethodPost, ts.URL+"/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var types []string
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var ev bench.Event
		require.NoError(t, conn.ReadJSON(&ev))
		types = append(types, ev.Type)
		if ev.Type == bench.EventDone {
			require.NotNil(t, ev.Result)
			assert.Zero(t, ev.Result.Errors)
			break
		}
	}
	assert.Equal(t, bench.EventStarted, types[0])
}

func TestRateLimitApplied(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 1
	srv := NewServer(cfg, nil)
	defer srv.Shutdown(context.Background())

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", bytes.NewReader(nil)))
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestStallGuardRefusesRuns(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	cfg.Pipeline.AbortTrip = 1
	srv := NewServer(cfg, nil)
	ts := httptest.NewServer(srv.Handler())
	defer func() {
		ts.Close()
		srv.Shutdown(context.Background())
	}()

	stall := `{"items": 100, "batch_size": 10, "producer_rate": 200, "timeout": "30ms"}`
	resp, body := do(t, http.MethodPost, ts.URL+"/runs", stall)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), `"aborted":true`)

	resp, _ = do(t, http.MethodPost, ts.URL+"/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	_, body = do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Contains(t, string(body), `"guard":"open"`)
}
