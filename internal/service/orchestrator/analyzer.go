// internal/service/orchestrator/analyzer.go

package orchestrator

import (
	"context"
	"time"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
	"pulse/internal/service/classify"
	"pulse/internal/service/dedup"
)

// RetrievalResult is the output of the retrieve half, retained by callers
// so the reason half can be retried on its own
type RetrievalResult struct {
	Query       signal.Query    `json:"query"`
	Signals     []signal.Signal `json:"signals"`
	Stats       dedup.Stats     `json:"stats"`
	RetrievedAt time.Time       `json:"retrievedAt"`
}

// Analyzer is the non-streaming two-stage runner: retrieve, then reason
type Analyzer struct {
	steps       *steps
	snapshotKey string
	logger      logger.Logger
}

// NewAnalyzer creates a two-stage analyzer
func NewAnalyzer(deps Deps, budget classify.Budget, snapshotKey string) *Analyzer {
	st := newSteps(deps, budget)
	return &Analyzer{
		steps:       st,
		snapshotKey: snapshotKey,
		logger:      st.deps.Logger,
	}
}

// Retrieve fetches and deduplicates signals for the query.
// Failures resume from retrieval.
func (a *Analyzer) Retrieve(ctx context.Context, q signal.Query) (RetrievalResult, error) {
	if err := q.Validate(); err != nil {
		return RetrievalResult{}, pipeline.AtStage(err, pipeline.StageRetrieve, pipeline.ResumeRetrieval)
	}

	raw, err := a.steps.retrieve(ctx, q)
	if err != nil {
		a.logger.Warn("Retrieval failed", logger.String("topic", q.Topic), logger.Error(err))
		return RetrievalResult{}, pipeline.AtStage(err, pipeline.StageRetrieve, pipeline.ResumeRetrieval)
	}

	signals, stats := a.steps.normalize(raw)
	if len(signals) == 0 {
		return RetrievalResult{}, pipeline.AtStage(
			pipeline.Validation("no usable signals were retrieved"),
			pipeline.StageNormalize, pipeline.ResumeRetrieval,
		)
	}

	a.logger.Info("Signals retrieved",
		logger.String("topic", q.Topic),
		logger.Int("retrieved", stats.Input),
		logger.Int("kept", stats.Kept),
	)

	return RetrievalResult{
		Query:       q,
		Signals:     signals,
		Stats:       stats,
		RetrievedAt: a.steps.now().UTC(),
	}, nil
}

// Reason classifies previously retrieved signals and builds the dashboard.
// Failures resume from classification unless the input itself is unusable.
func (a *Analyzer) Reason(ctx context.Context, q signal.Query, signals []signal.Signal) (signal.Dashboard, error) {
	if err := q.Validate(); err != nil {
		return signal.Dashboard{}, pipeline.AtStage(err, pipeline.StageMine, pipeline.ResumeClassification)
	}

	signals = signal.Clean(signals)
	if len(signals) == 0 {
		return signal.Dashboard{}, pipeline.AtStage(
			pipeline.Validation("signals are required"),
			pipeline.StageMine, pipeline.ResumeRetrieval,
		)
	}

	res, _, err := a.steps.classify(ctx, q, signals)
	if err != nil {
		a.logger.Warn("Classification failed", logger.String("topic", q.Topic), logger.Error(err))
		return signal.Dashboard{}, pipeline.AtStage(err, pipeline.StageMine, pipeline.ResumeClassification)
	}

	return a.steps.dashboard(ctx, a.snapshotKey, q, signals, res), nil
}
