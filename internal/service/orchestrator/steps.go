// internal/service/orchestrator/steps.go

package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
	"pulse/internal/service/aggregate"
	"pulse/internal/service/classify"
	"pulse/internal/service/dedup"
	"pulse/internal/service/scoring"
	"pulse/internal/service/snapshot"
)

// Recorder receives run instrumentation
type Recorder interface {
	RunStarted(variant string)
	RunFinished(variant, outcome string)
	StageCompleted(variant, stage string, d time.Duration)
	SignalsRemoved(reason string, n int)
	VolatilityObserved(v int)
}

type nopRecorder struct{}

func (nopRecorder) RunStarted(string)                            {}
func (nopRecorder) RunFinished(string, string)                   {}
func (nopRecorder) StageCompleted(string, string, time.Duration) {}
func (nopRecorder) SignalsRemoved(string, int)                   {}
func (nopRecorder) VolatilityObserved(int)                       {}

// Deps are the collaborators shared by the streaming and two-stage runners
type Deps struct {
	Retriever  signal.Retriever
	Classifier signal.Classifier
	Reasoner   signal.Reasoner
	Dedup      *dedup.Engine
	Snapshots  *snapshot.Engine
	Recorder   Recorder
	Logger     logger.Logger
}

// steps holds the per-stage work both runners are built from
type steps struct {
	deps   Deps
	budget classify.Budget
	now    func() time.Time
}

func newSteps(deps Deps, budget classify.Budget) *steps {
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Dedup == nil {
		deps.Dedup = dedup.NewEngine(dedup.Config{}, deps.Logger)
	}
	if budget.TotalChars <= 0 {
		budget = classify.DefaultBudget()
	}
	return &steps{deps: deps, budget: budget, now: time.Now}
}

func (s *steps) retrieve(ctx context.Context, q signal.Query) ([]signal.Signal, error) {
	if s.deps.Retriever == nil {
		return nil, pipeline.Internal("no retrieval provider configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signals, err := s.deps.Retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, providerError("retrieval provider failed", err)
	}
	return signal.Clean(signals), nil
}

func (s *steps) normalize(signals []signal.Signal) ([]signal.Signal, dedup.Stats) {
	kept, stats := s.deps.Dedup.Run(signals)

	s.deps.Recorder.SignalsRemoved("incomplete", stats.Incomplete)
	s.deps.Recorder.SignalsRemoved("blocked", stats.Blocked)
	s.deps.Recorder.SignalsRemoved("exact_duplicate", stats.ExactDupes)
	s.deps.Recorder.SignalsRemoved("near_duplicate", stats.NearDupes)

	return kept, stats
}

func (s *steps) classify(ctx context.Context, q signal.Query, signals []signal.Signal) (signal.ClassificationResult, []signal.Snippet, error) {
	snippets, err := classify.BuildSnippets(signals, s.budget)
	if err != nil {
		return signal.ClassificationResult{}, nil, err
	}
	if s.deps.Classifier == nil {
		return signal.ClassificationResult{}, nil, pipeline.Internal("no classification provider configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return signal.ClassificationResult{}, nil, err
	}

	res, err := s.deps.Classifier.Classify(ctx, signal.ClassificationRequest{Query: q, Snippets: snippets})
	if err != nil {
		return signal.ClassificationResult{}, nil, providerError("classification provider failed", err)
	}
	return res, snippets, nil
}

func (s *steps) reason(ctx context.Context, task signal.ReasoningTask) (json.RawMessage, error) {
	if s.deps.Reasoner == nil {
		return nil, pipeline.Internal("no reasoning provider configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.deps.Reasoner.Reason(ctx, task)
	if err != nil {
		return nil, providerError(task.Kind+" provider failed", err)
	}
	return classify.ExtractObject(raw)
}

// dashboard runs aggregation and the snapshot diff over a classification
func (s *steps) dashboard(ctx context.Context, key string, q signal.Query, signals []signal.Signal, res signal.ClassificationResult) signal.Dashboard {
	agg := aggregate.Aggregate(res.Items, signals, res.Clusters)
	suggestions := scoring.BuildSuggestions(q.Topic, signals, s.now())
	return s.finish(ctx, key, q, signals, len(res.Items), agg, suggestions)
}

func (s *steps) finish(ctx context.Context, key string, q signal.Query, signals []signal.Signal, items int, agg aggregate.Result, suggestions []signal.Suggestion) signal.Dashboard {
	dash := signal.Dashboard{
		Topic:             q.Topic,
		SignalCount:       len(signals),
		ItemCount:         items,
		Emotions:          agg.Emotions,
		Concerns:          agg.Concerns,
		Clusters:          agg.Clusters,
		DominantEmotion:   agg.DominantEmotion,
		DominantConcern:   agg.DominantConcern,
		DominantNarrative: agg.DominantNarrative,
		RisingNarratives:  []signal.RisingNarrative{},
		Suggestions:       suggestions,
		GeneratedAt:       s.now().UTC(),
	}

	if s.deps.Snapshots != nil {
		diff := s.deps.Snapshots.Diff(ctx, key, snapshot.Current{
			EmotionDistribution: agg.EmotionFractions,
			Clusters:            agg.Clusters,
		})
		dash.Volatility = diff.Volatility
		dash.RisingNarratives = diff.Rising
		s.deps.Recorder.VolatilityObserved(diff.Volatility)
	}

	return dash
}

// providerError tags untagged collaborator failures as unreachable
func providerError(msg string, err error) error {
	var perr *pipeline.Error
	if pipeline.AsError(err, &perr) {
		return err
	}
	return pipeline.Unreachable(msg, err)
}
