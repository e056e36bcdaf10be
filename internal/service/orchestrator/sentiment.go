// internal/service/orchestrator/sentiment.go

package orchestrator

import (
	"context"
	"fmt"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/service/aggregate"
	"pulse/internal/service/dedup"
	"pulse/internal/service/scoring"
)

type retrieveOutput struct {
	Count   int             `json:"count"`
	Signals []signal.Signal `json:"signals"`
}

type normalizeOutput struct {
	Signals     []signal.Signal     `json:"signals"`
	Stats       dedup.Stats         `json:"stats"`
	Suggestions []signal.Suggestion `json:"suggestions,omitempty"`
}

type classifyOutput struct {
	Snippets int                       `json:"snippets"`
	Items    []signal.ClassifiedSignal `json:"items"`
	Clusters []signal.NarrativeCluster `json:"clusters,omitempty"`
}

type aggregateOutput struct {
	Emotions          []signal.EmotionStat      `json:"emotions"`
	Concerns          []signal.ConcernStat      `json:"concerns"`
	Clusters          []signal.NarrativeCluster `json:"clusters"`
	DominantEmotion   string                    `json:"dominantEmotion,omitempty"`
	DominantConcern   string                    `json:"dominantConcern,omitempty"`
	DominantNarrative string                    `json:"dominantNarrative,omitempty"`
	Suggestions       []signal.Suggestion       `json:"suggestions"`
}

// sentimentRun classifies signals and diffs the result against the last snapshot
type sentimentRun struct {
	steps *steps
	req   Request

	signals     []signal.Signal
	result      signal.ClassificationResult
	agg         aggregate.Result
	suggestions []signal.Suggestion
}

func (r *sentimentRun) stages() []stageSpec {
	return []stageSpec{
		{pipeline.StageRetrieve, "Retrieving signals", pipeline.ResumeRetrieval, r.retrieve},
		{pipeline.StageNormalize, "Removing duplicate and incomplete signals", pipeline.ResumeRetrieval, r.normalize},
		{pipeline.StageMine, "Classifying emotions and narratives", pipeline.ResumeClassification, r.classify},
		{pipeline.StageScore, "Aggregating and scoring", pipeline.ResumeClassification, r.aggregate},
		{pipeline.StageSynthesize, "Building dashboard", pipeline.ResumeClassification, r.synthesize},
	}
}

func (r *sentimentRun) retrieve(ctx context.Context, em *emitter) (any, error) {
	signals, err := r.steps.retrieve(ctx, r.req.Query)
	if err != nil {
		return nil, err
	}
	r.signals = signals
	return retrieveOutput{Count: len(signals), Signals: signals}, nil
}

func (r *sentimentRun) normalize(_ context.Context, em *emitter) (any, error) {
	kept, stats := r.steps.normalize(r.signals)
	if len(kept) == 0 {
		return nil, pipeline.Validation("no usable signals after deduplication")
	}
	r.signals = kept
	return normalizeOutput{Signals: kept, Stats: stats}, nil
}

func (r *sentimentRun) classify(ctx context.Context, em *emitter) (any, error) {
	em.progress(pipeline.StageMine, fmt.Sprintf("Classifying %d signals", len(r.signals)), nil)

	res, snippets, err := r.steps.classify(ctx, r.req.Query, r.signals)
	if err != nil {
		return nil, err
	}
	r.result = res
	return classifyOutput{Snippets: len(snippets), Items: res.Items, Clusters: res.Clusters}, nil
}

func (r *sentimentRun) aggregate(_ context.Context, _ *emitter) (any, error) {
	r.agg = aggregate.Aggregate(r.result.Items, r.signals, r.result.Clusters)
	r.suggestions = scoring.BuildSuggestions(r.req.Query.Topic, r.signals, r.steps.now())

	return aggregateOutput{
		Emotions:          r.agg.Emotions,
		Concerns:          r.agg.Concerns,
		Clusters:          r.agg.Clusters,
		DominantEmotion:   r.agg.DominantEmotion,
		DominantConcern:   r.agg.DominantConcern,
		DominantNarrative: r.agg.DominantNarrative,
		Suggestions:       r.suggestions,
	}, nil
}

func (r *sentimentRun) synthesize(ctx context.Context, _ *emitter) (any, error) {
	dash := r.steps.finish(ctx, r.req.SnapshotKey, r.req.Query, r.signals, len(r.result.Items), r.agg, r.suggestions)
	return dash, nil
}
