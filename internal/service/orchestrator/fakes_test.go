// internal/service/orchestrator/fakes_test.go

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
	"pulse/internal/service/snapshot"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeRetriever struct {
	signals []signal.Signal
	err     error
	calls   int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q signal.Query) ([]signal.Signal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.signals, nil
}

type fakeClassifier struct {
	emotions []string
	clusters []string
	result   *signal.ClassificationResult
	err      error
	hook     func(ctx context.Context)
	last     signal.ClassificationRequest
}

func (f *fakeClassifier) Classify(ctx context.Context, req signal.ClassificationRequest) (signal.ClassificationResult, error) {
	f.last = req
	if f.hook != nil {
		f.hook(ctx)
	}
	if f.err != nil {
		return signal.ClassificationResult{}, f.err
	}
	if f.result != nil {
		return *f.result, nil
	}

	var res signal.ClassificationResult
	for i, sn := range req.Snippets {
		item := signal.ClassifiedSignal{Index: sn.Index}
		if i < len(f.emotions) {
			item.Emotion = f.emotions[i]
		}
		if i < len(f.clusters) {
			item.Cluster = f.clusters[i]
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

type fakeReasoner struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	tasks   []signal.ReasoningTask
}

func (f *fakeReasoner) Reason(ctx context.Context, task signal.ReasoningTask) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tasks = append(f.tasks, task)
	if err := f.errs[task.Kind]; err != nil {
		return nil, err
	}
	return json.RawMessage(f.answers[task.Kind]), nil
}

type memoryStore struct {
	mu    sync.Mutex
	snaps map[string]signal.AnalysisSnapshot
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snaps: map[string]signal.AnalysisSnapshot{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (*signal.AnalysisSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memoryStore) Put(_ context.Context, key string, snap signal.AnalysisSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[key] = snap
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []pipeline.StageEvent
	runIDs []string
	err    error
}

func (s *recordingSink) Publish(_ context.Context, runID string, ev pipeline.StageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	s.runIDs = append(s.runIDs, runID)
	return s.err
}

type countingRecorder struct {
	mu       sync.Mutex
	started  int
	outcomes []string
	dropped  map[string]int
	stages   []string
}

func (c *countingRecorder) RunStarted(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
}

func (c *countingRecorder) RunFinished(_ string, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}

func (c *countingRecorder) StageCompleted(_ string, stage string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, stage)
}

func (c *countingRecorder) SignalsRemoved(reason string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped == nil {
		c.dropped = map[string]int{}
	}
	c.dropped[reason] += n
}

func (c *countingRecorder) VolatilityObserved(int) {}

var errNetwork = errors.New("connection refused")

func sampleSignals() []signal.Signal {
	now := testNow.Format(time.RFC3339)
	return []signal.Signal{
		{Title: "Brand launches eco line", Snippet: "A new product line", URL: "https://a.com/1", PublishedAt: now},
		{Title: "Brand Launches Eco Line!!", Snippet: "Same story", URL: "https://a.com/2", PublishedAt: now},
		{Title: "Shoppers cheer cheaper refills", Snippet: "Refill prices drop", URL: "https://b.com/1", PublishedAt: now},
		{Title: "Regulator questions green claims", Snippet: "Investigation opened", URL: "https://c.com/1", PublishedAt: now},
	}
}

func newTestDeps(r signal.Retriever, c signal.Classifier, rs signal.Reasoner, store signal.SnapshotStore) Deps {
	log := logger.NewNop()
	deps := Deps{
		Retriever:  r,
		Classifier: c,
		Reasoner:   rs,
		Logger:     log,
	}
	if store != nil {
		deps.Snapshots = snapshot.NewEngine(store, log)
	}
	return deps
}

func collect(events <-chan pipeline.StageEvent) []pipeline.StageEvent {
	var out []pipeline.StageEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

type stageStatus struct {
	Stage  pipeline.Stage
	Status pipeline.Status
}

func sequence(events []pipeline.StageEvent) []stageStatus {
	out := make([]stageStatus, 0, len(events))
	for _, ev := range events {
		out = append(out, stageStatus{ev.Stage, ev.Status})
	}
	return out
}
