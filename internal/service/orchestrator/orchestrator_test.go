// internal/service/orchestrator/orchestrator_test.go

package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
	"pulse/internal/service/dedup"
)

func newTestOrchestrator(deps Deps, sink EventSink, cfg Config) *Orchestrator {
	o := New(deps, sink, cfg)
	o.steps.now = func() time.Time { return testNow }
	return o
}

func sentimentRequest() Request {
	return Request{
		RunID:       "run-1",
		Query:       signal.Query{Topic: "brand eco", Region: "us", TimeWindow: "7d"},
		SnapshotKey: "tab-1",
	}
}

func TestRun_SentimentHappyPath(t *testing.T) {
	store := newMemoryStore()
	rec := &countingRecorder{}
	deps := newTestDeps(
		&fakeRetriever{signals: sampleSignals()},
		&fakeClassifier{emotions: []string{"joy", "Joy ", "fear"}, clusters: []string{"launch", "launch", "recall"}},
		nil, store,
	)
	deps.Recorder = rec
	o := newTestOrchestrator(deps, nil, Config{})

	events, err := o.Run(context.Background(), sentimentRequest())
	require.NoError(t, err)
	got := collect(events)

	assert.Equal(t, []stageStatus{
		{pipeline.StageRetrieve, pipeline.StatusStart},
		{pipeline.StageRetrieve, pipeline.StatusComplete},
		{pipeline.StageNormalize, pipeline.StatusStart},
		{pipeline.StageNormalize, pipeline.StatusComplete},
		{pipeline.StageMine, pipeline.StatusStart},
		{pipeline.StageMine, pipeline.StatusProgress},
		{pipeline.StageMine, pipeline.StatusComplete},
		{pipeline.StageScore, pipeline.StatusStart},
		{pipeline.StageScore, pipeline.StatusComplete},
		{pipeline.StageSynthesize, pipeline.StatusStart},
		{pipeline.StageSynthesize, pipeline.StatusComplete},
	}, sequence(got))

	norm, ok := got[3].Data.(normalizeOutput)
	require.True(t, ok)
	assert.Len(t, norm.Signals, 3)
	assert.Equal(t, 1, norm.Stats.NearDupes)

	dash, ok := got[10].Data.(signal.Dashboard)
	require.True(t, ok)
	assert.Equal(t, "brand eco", dash.Topic)
	assert.Equal(t, 3, dash.SignalCount)
	assert.Equal(t, []signal.EmotionStat{
		{Emotion: "joy", Count: 2, Percentage: 67},
		{Emotion: "fear", Count: 1, Percentage: 33},
	}, dash.Emotions)
	assert.Equal(t, "launch", dash.DominantNarrative)
	assert.Equal(t, 50, dash.Volatility)
	assert.Equal(t, []signal.RisingNarrative{{Label: "launch", Delta: 2}, {Label: "recall", Delta: 1}}, dash.RisingNarratives)
	assert.Len(t, dash.Suggestions, 3)

	snap, err := store.Get(context.Background(), "tab-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, map[string]int{"launch": 2, "recall": 1}, snap.Clusters)

	assert.Equal(t, 1, rec.started)
	assert.Equal(t, []string{"complete"}, rec.outcomes)
	assert.Equal(t, 1, rec.dropped["near_duplicate"])
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, rec.stages)
}

func TestRun_SecondRunDiffsAgainstFirst(t *testing.T) {
	store := newMemoryStore()
	deps := newTestDeps(
		&fakeRetriever{signals: sampleSignals()},
		&fakeClassifier{emotions: []string{"joy", "joy", "fear"}, clusters: []string{"launch", "launch", "recall"}},
		nil, store,
	)
	o := newTestOrchestrator(deps, nil, Config{})

	for i := 0; i < 2; i++ {
		events, err := o.Run(context.Background(), sentimentRequest())
		require.NoError(t, err)
		got := collect(events)

		dash := got[len(got)-1].Data.(signal.Dashboard)
		if i == 1 {
			assert.Equal(t, 0, dash.Volatility)
			assert.Empty(t, dash.RisingNarratives)
		}
	}
}

func TestRun_ClassificationMalformedHaltsAtStageC(t *testing.T) {
	rec := &countingRecorder{}
	deps := newTestDeps(
		&fakeRetriever{signals: sampleSignals()},
		&fakeClassifier{err: pipeline.Malformed("classification response failed schema validation", "items[3].emotion: expected string")},
		nil, newMemoryStore(),
	)
	deps.Recorder = rec
	o := newTestOrchestrator(deps, nil, Config{})

	events, err := o.Run(context.Background(), sentimentRequest())
	require.NoError(t, err)
	got := collect(events)

	require.Len(t, got, 7)
	last := got[6]
	assert.Equal(t, pipeline.StageMine, last.Stage)
	assert.Equal(t, pipeline.StatusError, last.Status)
	assert.Equal(t, pipeline.KindMalformed, last.Kind)
	assert.Equal(t, pipeline.ResumeClassification, last.Resume)
	assert.Equal(t, []string{"items[3].emotion: expected string"}, last.Violations)
	assert.Equal(t, []string{"malformed"}, rec.outcomes)
}

func TestRun_RetrievalFailureIsUnreachableAtStageA(t *testing.T) {
	o := newTestOrchestrator(newTestDeps(&fakeRetriever{err: errNetwork}, &fakeClassifier{}, nil, nil), nil, Config{})

	events, err := o.Run(context.Background(), sentimentRequest())
	require.NoError(t, err)
	got := collect(events)

	assert.Equal(t, []stageStatus{
		{pipeline.StageRetrieve, pipeline.StatusStart},
		{pipeline.StageRetrieve, pipeline.StatusError},
	}, sequence(got))
	assert.Equal(t, pipeline.KindProviderUnreachable, got[1].Kind)
	assert.Equal(t, pipeline.ResumeRetrieval, got[1].Resume)
}

func TestRun_CollaboratorTimeoutIsStageError(t *testing.T) {
	deps := newTestDeps(
		&fakeRetriever{signals: sampleSignals()},
		&fakeClassifier{err: context.DeadlineExceeded},
		nil, nil,
	)
	o := newTestOrchestrator(deps, nil, Config{})

	events, err := o.Run(context.Background(), sentimentRequest())
	require.NoError(t, err)
	got := collect(events)

	last := got[len(got)-1]
	assert.Equal(t, pipeline.StageMine, last.Stage)
	assert.Equal(t, pipeline.StatusError, last.Status)
	assert.Equal(t, pipeline.KindProviderUnreachable, last.Kind)
}

func TestRun_AllSignalsDroppedIsValidationAtStageB(t *testing.T) {
	deps := newTestDeps(
		&fakeRetriever{signals: []signal.Signal{{Title: "x", URL: "https://facebook.com/p/1"}}},
		&fakeClassifier{},
		nil, nil,
	)
	deps.Dedup = dedup.NewEngine(dedup.Config{BlockedDomains: []string{"facebook.com"}}, logger.NewNop())
	o := newTestOrchestrator(deps, nil, Config{})

	events, err := o.Run(context.Background(), sentimentRequest())
	require.NoError(t, err)
	got := collect(events)

	last := got[len(got)-1]
	assert.Equal(t, pipeline.StageNormalize, last.Stage)
	assert.Equal(t, pipeline.KindValidation, last.Kind)
	assert.Equal(t, pipeline.ResumeRetrieval, last.Resume)
}

func TestRun_CancelDuringClassificationStopsEmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &countingRecorder{}
	sink := &recordingSink{}
	deps := newTestDeps(
		&fakeRetriever{signals: sampleSignals()},
		&fakeClassifier{
			emotions: []string{"joy", "joy", "fear"},
			hook:     func(context.Context) { cancel() },
		},
		nil, newMemoryStore(),
	)
	deps.Recorder = rec
	o := newTestOrchestrator(deps, sink, Config{})

	events, err := o.Run(ctx, sentimentRequest())
	require.NoError(t, err)
	got := collect(events)

	assert.Equal(t, []stageStatus{
		{pipeline.StageRetrieve, pipeline.StatusStart},
		{pipeline.StageRetrieve, pipeline.StatusComplete},
		{pipeline.StageNormalize, pipeline.StatusStart},
		{pipeline.StageNormalize, pipeline.StatusComplete},
		{pipeline.StageMine, pipeline.StatusStart},
		{pipeline.StageMine, pipeline.StatusProgress},
	}, sequence(got))
	assert.Len(t, sink.events, 6)
	assert.Equal(t, []string{"cancelled"}, rec.outcomes)
}

func TestRun_CancelledBeforeStartEmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retriever := &fakeRetriever{signals: sampleSignals()}
	o := newTestOrchestrator(newTestDeps(retriever, &fakeClassifier{}, nil, nil), nil, Config{})

	events, err := o.Run(ctx, sentimentRequest())
	require.NoError(t, err)

	assert.Empty(t, collect(events))
	assert.Equal(t, 0, retriever.calls)
}

func TestRun_SinkMirrorsEveryEvent(t *testing.T) {
	sink := &recordingSink{err: errNetwork}
	deps := newTestDeps(
		&fakeRetriever{signals: sampleSignals()},
		&fakeClassifier{emotions: []string{"joy", "joy", "fear"}},
		nil, newMemoryStore(),
	)
	o := newTestOrchestrator(deps, sink, Config{EventBuffer: 1})

	events, err := o.Run(context.Background(), sentimentRequest())
	require.NoError(t, err)
	got := collect(events)

	// a failing sink never interrupts the stream
	require.Len(t, got, 11)
	assert.Equal(t, got, sink.events)
	for _, id := range sink.runIDs {
		assert.Equal(t, "run-1", id)
	}
}

func TestRun_RejectsInvalidRequests(t *testing.T) {
	o := newTestOrchestrator(newTestDeps(&fakeRetriever{}, &fakeClassifier{}, nil, nil), nil, Config{})

	_, err := o.Run(context.Background(), Request{Query: signal.Query{Topic: "  "}})
	require.Error(t, err)
	assert.Equal(t, pipeline.KindValidation, pipeline.KindOf(err))

	_, err = o.Run(context.Background(), Request{Query: signal.Query{Topic: "x"}, Variant: "haiku"})
	require.Error(t, err)
	assert.Equal(t, pipeline.KindValidation, pipeline.KindOf(err))
}

func TestRun_OpportunityVariant(t *testing.T) {
	reasoner := &fakeReasoner{answers: map[string]string{
		TaskMine:     "Here you go: {\"opportunities\":[{\"name\":\"refills\"}]} hope it helps",
		TaskScore:    `{"ranked":[{"name":"refills","score":80}]}`,
		TaskPlaybook: `{"steps":["launch refill promo"]}`,
	}}
	deps := newTestDeps(&fakeRetriever{signals: sampleSignals()}, nil, reasoner, nil)
	o := newTestOrchestrator(deps, nil, Config{Variant: VariantOpportunity})

	req := sentimentRequest()
	req.Query.Goal = "grow refills"
	events, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	got := collect(events)

	require.Len(t, got, 10)
	norm := got[3].Data.(normalizeOutput)
	assert.Len(t, norm.Suggestions, 3)

	mined, ok := got[5].Data.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"opportunities":[{"name":"refills"}]}`, string(mined))
	assert.JSONEq(t, `{"steps":["launch refill promo"]}`, string(got[9].Data.(json.RawMessage)))

	require.Len(t, reasoner.tasks, 3)
	assert.Equal(t, []string{TaskMine, TaskScore, TaskPlaybook},
		[]string{reasoner.tasks[0].Kind, reasoner.tasks[1].Kind, reasoner.tasks[2].Kind})
	assert.Contains(t, reasoner.tasks[0].Goal, "Caller goal: grow refills")
	assert.NotContains(t, reasoner.tasks[0].Prior, "opportunities")
	assert.Contains(t, reasoner.tasks[1].Prior, "opportunities")
	assert.Contains(t, reasoner.tasks[2].Prior, "scores")
}

func TestRun_OpportunityErrorKeepsTrueStage(t *testing.T) {
	reasoner := &fakeReasoner{answers: map[string]string{
		TaskMine:  `{"opportunities":[]}`,
		TaskScore: "I am unable to score these.",
	}}
	deps := newTestDeps(&fakeRetriever{signals: sampleSignals()}, nil, reasoner, nil)
	o := newTestOrchestrator(deps, nil, Config{})

	req := sentimentRequest()
	req.Variant = VariantOpportunity
	events, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	got := collect(events)

	last := got[len(got)-1]
	assert.Equal(t, pipeline.StageScore, last.Stage)
	assert.Equal(t, pipeline.StatusError, last.Status)
	assert.Equal(t, pipeline.KindMalformed, last.Kind)
	assert.Len(t, reasoner.tasks, 2)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, VariantSentiment, v)

	v, err = ParseVariant("opportunity")
	require.NoError(t, err)
	assert.Equal(t, VariantOpportunity, v)

	_, err = ParseVariant("other")
	assert.Error(t, err)
}

func TestRun_ErrorEventCarriesCollaboratorStage(t *testing.T) {
	reasoner := &fakeReasoner{
		answers: map[string]string{TaskMine: `{"opportunities":[]}`},
		errs: map[string]error{TaskScore: &pipeline.Error{
			Kind:    pipeline.KindMalformed,
			Stage:   pipeline.StageMine,
			Message: "mined opportunities cannot be scored",
		}},
	}
	rec := &countingRecorder{}
	deps := newTestDeps(&fakeRetriever{signals: sampleSignals()}, nil, reasoner, nil)
	deps.Recorder = rec
	o := newTestOrchestrator(deps, nil, Config{})

	req := sentimentRequest()
	req.Variant = VariantOpportunity
	events, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	got := collect(events)

	last := got[len(got)-1]
	assert.Equal(t, pipeline.StatusError, last.Status)
	assert.Equal(t, pipeline.StageMine, last.Stage)
	assert.Equal(t, pipeline.ResumeClassification, last.Resume)
	assert.Equal(t, "mined opportunities cannot be scored", last.Message)
	assert.Equal(t, []string{"malformed"}, rec.outcomes)
}

// cancellingStore cancels the run while the previous snapshot is loaded
type cancellingStore struct {
	*memoryStore
	cancel context.CancelFunc
}

func (s *cancellingStore) Get(ctx context.Context, key string) (*signal.AnalysisSnapshot, error) {
	s.cancel()
	return s.memoryStore.Get(ctx, key)
}

func TestRun_CancelDuringSynthesisKeepsPreviousSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &cancellingStore{memoryStore: newMemoryStore(), cancel: cancel}
	rec := &countingRecorder{}
	deps := newTestDeps(
		&fakeRetriever{signals: sampleSignals()},
		&fakeClassifier{emotions: []string{"joy", "joy", "fear"}},
		nil, store,
	)
	deps.Recorder = rec
	o := newTestOrchestrator(deps, nil, Config{})

	events, err := o.Run(ctx, sentimentRequest())
	require.NoError(t, err)
	got := collect(events)

	for _, ev := range got {
		assert.False(t, ev.Stage == pipeline.StageSynthesize && ev.Status == pipeline.StatusComplete)
	}
	assert.Empty(t, store.snaps)
	assert.Equal(t, []string{"cancelled"}, rec.outcomes)
}
