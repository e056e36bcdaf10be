// internal/server/handlers/handlers_test.go

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
	"pulse/internal/service/orchestrator"
)

type fakeRunner struct {
	events []pipeline.StageEvent
	err    error
	got    orchestrator.Request
}

func (f *fakeRunner) Run(ctx context.Context, req orchestrator.Request) (<-chan pipeline.StageEvent, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	if err := req.Query.Validate(); err != nil {
		return nil, err
	}

	ch := make(chan pipeline.StageEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeAnalyzer struct {
	result    orchestrator.RetrievalResult
	dashboard signal.Dashboard
	err       error
	signals   []signal.Signal
}

func (f *fakeAnalyzer) Retrieve(_ context.Context, q signal.Query) (orchestrator.RetrievalResult, error) {
	if f.err != nil {
		return orchestrator.RetrievalResult{}, f.err
	}
	res := f.result
	res.Query = q
	return res, nil
}

func (f *fakeAnalyzer) Reason(_ context.Context, q signal.Query, signals []signal.Signal) (signal.Dashboard, error) {
	f.signals = signals
	if f.err != nil {
		return signal.Dashboard{}, f.err
	}
	d := f.dashboard
	d.Topic = q.Topic
	return d, nil
}

func newRunRouter(runner Runner, reg Registry) http.Handler {
	h := NewRunHandler(runner, reg, logger.NewNop())
	r := chi.NewRouter()
	r.Post("/runs/stream", h.Stream)
	r.Delete("/runs", h.Cancel)
	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStream_WritesNDJSON(t *testing.T) {
	runner := &fakeRunner{events: []pipeline.StageEvent{
		{Stage: pipeline.StageRetrieve, Status: pipeline.StatusStart, Message: "Retrieving signals"},
		{Stage: pipeline.StageRetrieve, Status: pipeline.StatusComplete, Data: map[string]int{"count": 2}},
	}}
	router := newRunRouter(runner, orchestrator.NewRunRegistry())

	body := `{"topic":"battery recall","region":"EU","variant":"opportunity","goal":"retain buyers"}`
	req := httptest.NewRequest(http.MethodPost, "/runs/stream", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(HeaderRunID))
	assert.Equal(t, rec.Header().Get(HeaderRunID), runner.got.RunID)

	assert.Equal(t, "battery recall", runner.got.Query.Topic)
	assert.Equal(t, "EU", runner.got.Query.Region)
	assert.Equal(t, "retain buyers", runner.got.Query.Goal)
	assert.Equal(t, orchestrator.VariantOpportunity, runner.got.Variant)

	events, err := pipeline.DecodeEvents(rec.Body)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, pipeline.StatusStart, events[0].Status)
	assert.Equal(t, pipeline.StatusComplete, events[1].Status)
}

func TestStream_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"topic":`},
		{"unknown variant", `{"topic":"x","variant":"haiku"}`},
		{"missing topic", `{"region":"US"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRunRouter(&fakeRunner{}, orchestrator.NewRunRegistry())
			req := httptest.NewRequest(http.MethodPost, "/runs/stream", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation", decodeError(t, rec).Kind)
		})
	}
}

func TestStream_CancelsPreviousRunForClient(t *testing.T) {
	reg := orchestrator.NewRunRegistry()
	prevCtx, _, release := reg.Begin(context.Background(), "client-1")
	defer release()

	router := newRunRouter(&fakeRunner{}, reg)
	req := httptest.NewRequest(http.MethodPost, "/runs/stream", strings.NewReader(`{"topic":"x"}`))
	req.Header.Set(HeaderClientID, "client-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.ErrorIs(t, prevCtx.Err(), context.Canceled)

	_, active := reg.Active("client-1")
	assert.False(t, active)
}

func TestCancel(t *testing.T) {
	reg := orchestrator.NewRunRegistry()
	router := newRunRouter(&fakeRunner{}, reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/runs", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/runs", nil)
	req.Header.Set(HeaderClientID, "client-2")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ctx, _, release := reg.Begin(context.Background(), "client-2")
	defer release()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Error(t, ctx.Err())
}

func TestSignals(t *testing.T) {
	analyzer := &fakeAnalyzer{result: orchestrator.RetrievalResult{
		Signals: []signal.Signal{{Title: "Recall widens", URL: "https://a.example/1"}},
	}}
	h := NewAnalysisHandler(analyzer, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Signals(rec, httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader(`{"topic":"recall"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var res orchestrator.RetrievalResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "recall", res.Query.Topic)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, "Recall widens", res.Signals[0].Title)
}

func TestSignals_ProviderUnreachable(t *testing.T) {
	err := pipeline.AtStage(
		pipeline.Unreachable("search returned status code 502", errors.New("bad gateway")),
		pipeline.StageRetrieve, pipeline.ResumeRetrieval,
	)
	h := NewAnalysisHandler(&fakeAnalyzer{err: err}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Signals(rec, httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader(`{"topic":"recall"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "provider-unreachable", body.Kind)
	assert.Equal(t, "A", body.Stage)
	assert.Equal(t, "retrieval", body.Resume)
	assert.Equal(t, "search returned status code 502", body.Error)
}

func TestAnalyze(t *testing.T) {
	analyzer := &fakeAnalyzer{dashboard: signal.Dashboard{SignalCount: 1, DominantEmotion: "joy"}}
	h := NewAnalysisHandler(analyzer, logger.NewNop())

	payload, err := json.Marshal(map[string]any{
		"topic":   "launch",
		"signals": []signal.Signal{{Title: "Launch day", URL: "https://a.example/2"}},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analysis", bytes.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	var dash signal.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, "launch", dash.Topic)
	assert.Equal(t, "joy", dash.DominantEmotion)
	require.Len(t, analyzer.signals, 1)
}

func TestAnalyze_MalformedClassification(t *testing.T) {
	err := pipeline.AtStage(
		pipeline.Malformed("classifier response failed validation", "items[0].index: required"),
		pipeline.StageMine, pipeline.ResumeClassification,
	)
	h := NewAnalysisHandler(&fakeAnalyzer{err: err}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analysis", strings.NewReader(`{"topic":"t","signals":[]}`)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "malformed", body.Kind)
	assert.Equal(t, "classification", body.Resume)
	assert.Equal(t, []string{"items[0].index: required"}, body.Violations)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(pipeline.KindValidation))
	assert.Equal(t, http.StatusBadGateway, statusFor(pipeline.KindMalformed))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(pipeline.KindProviderUnreachable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(pipeline.KindInternal))
}
