// internal/server/server_test.go

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/adapter/events"
	"pulse/internal/config"
	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/metrics"
	"pulse/internal/service/orchestrator"
)

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, req orchestrator.Request) (<-chan pipeline.StageEvent, error) {
	ch := make(chan pipeline.StageEvent, 1)
	ch <- pipeline.StageEvent{Stage: pipeline.StageRetrieve, Status: pipeline.StatusStart, Message: req.Query.Topic}
	close(ch)
	return ch, nil
}

// blockingRunner streams until the run context ends
type blockingRunner struct {
	started chan struct{}
}

func (b blockingRunner) Run(ctx context.Context, req orchestrator.Request) (<-chan pipeline.StageEvent, error) {
	ch := make(chan pipeline.StageEvent, 1)
	ch <- pipeline.StageEvent{Stage: pipeline.StageRetrieve, Status: pipeline.StatusStart, Message: req.Query.Topic}
	go func() {
		defer close(ch)
		close(b.started)
		<-ctx.Done()
	}()
	return ch, nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Retrieve(_ context.Context, q signal.Query) (orchestrator.RetrievalResult, error) {
	return orchestrator.RetrievalResult{Query: q}, nil
}

func (stubAnalyzer) Reason(_ context.Context, q signal.Query, _ []signal.Signal) (signal.Dashboard, error) {
	return signal.Dashboard{Topic: q.Topic}, nil
}

func newTestServer() *Server {
	m := metrics.New()
	m.RunStarted("sentiment")

	return NewServer(config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		WriteTimeout: 30 * time.Second,
		CorsOrigins:  []string{"https://app.example.com"},
	}, Dependencies{
		Runner:   stubRunner{},
		Registry: orchestrator.NewRunRegistry(),
		Analyzer: stubAnalyzer{},
		Watcher:  events.NewHub(),
		Metrics:  m.Handler(),
	})
}

func TestRoutes(t *testing.T) {
	h := newTestServer().Handler()

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		contains string
	}{
		{"health", http.MethodGet, "/api/health", "", http.StatusOK, "OK"},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK, "pulse_runs_started_total"},
		{"stream", http.MethodPost, "/api/v1/runs/stream", `{"topic":"solar"}`, http.StatusOK, `"message":"solar"`},
		{"signals", http.MethodPost, "/api/v1/signals", `{"topic":"solar"}`, http.StatusOK, `"topic":"solar"`},
		{"analysis", http.MethodPost, "/api/v1/analysis", `{"topic":"wind","signals":[]}`, http.StatusOK, `"topic":"wind"`},
		{"cancel without client", http.MethodDelete, "/api/v1/runs", "", http.StatusBadRequest, "validation"},
		{"unknown route", http.MethodGet, "/api/v1/trends", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestCORSExposesRunID(t *testing.T) {
	h := newTestServer().Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/stream", strings.NewReader(`{"topic":"solar"}`))
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers")), "x-run-id")
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))
}

func TestBaseContextEndsOpenStreams(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := blockingRunner{started: make(chan struct{})}
	s := NewServer(config.ServerConfig{Host: "127.0.0.1"}, Dependencies{
		Runner:      runner,
		Registry:    orchestrator.NewRunRegistry(),
		Analyzer:    stubAnalyzer{},
		BaseContext: base,
	})

	ts := httptest.NewUnstartedServer(s.server.Handler)
	ts.Config.BaseContext = s.server.BaseContext
	ts.Start()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/runs/stream", "application/json", strings.NewReader(`{"topic":"solar"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	<-runner.started
	cancel()

	done := make(chan []byte, 1)
	go func() {
		body, _ := io.ReadAll(resp.Body)
		done <- body
	}()

	select {
	case body := <-done:
		assert.Contains(t, string(body), `"message":"solar"`)
	case <-time.After(5 * time.Second):
		t.Fatal("stream still open after base context was cancelled")
	}
}
