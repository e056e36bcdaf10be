// internal/service/orchestrator/opportunity.go

package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/service/scoring"
)

// Reasoning task kinds
const (
	TaskMine     = "mine"
	TaskScore    = "score"
	TaskPlaybook = "playbook"
)

var taskGoals = map[string]string{
	TaskMine:     "Identify concrete opportunities suggested by the signals.",
	TaskScore:    "Score and rank the opportunities by impact, effort and evidence.",
	TaskPlaybook: "Write an actionable playbook for the highest ranked opportunities.",
}

// opportunityRun mines, ranks and plans opportunities with the reasoning provider
type opportunityRun struct {
	steps *steps
	req   Request

	signals []signal.Signal
	prior   map[string]any
}

func (r *opportunityRun) stages() []stageSpec {
	return []stageSpec{
		{pipeline.StageRetrieve, "Retrieving signals", pipeline.ResumeRetrieval, r.retrieve},
		{pipeline.StageNormalize, "Normalizing and scoring signals", pipeline.ResumeRetrieval, r.normalize},
		{pipeline.StageMine, "Mining opportunities", pipeline.ResumeClassification, r.reasoning(TaskMine, "opportunities")},
		{pipeline.StageScore, "Scoring opportunities", pipeline.ResumeClassification, r.reasoning(TaskScore, "scores")},
		{pipeline.StageSynthesize, "Drafting playbook", pipeline.ResumeClassification, r.reasoning(TaskPlaybook, "playbook")},
	}
}

func (r *opportunityRun) retrieve(ctx context.Context, _ *emitter) (any, error) {
	signals, err := r.steps.retrieve(ctx, r.req.Query)
	if err != nil {
		return nil, err
	}
	r.signals = signals
	return retrieveOutput{Count: len(signals), Signals: signals}, nil
}

func (r *opportunityRun) normalize(_ context.Context, _ *emitter) (any, error) {
	kept, stats := r.steps.normalize(r.signals)
	if len(kept) == 0 {
		return nil, pipeline.Validation("no usable signals after deduplication")
	}
	r.signals = kept

	suggestions := scoring.BuildSuggestions(r.req.Query.Topic, kept, r.steps.now())
	r.prior = map[string]any{
		"signals":     kept,
		"suggestions": suggestions,
	}
	return normalizeOutput{Signals: kept, Stats: stats, Suggestions: suggestions}, nil
}

// reasoning builds a stage that sends the accumulated output to the
// reasoning provider and records the answer under key
func (r *opportunityRun) reasoning(kind, key string) stageFunc {
	return func(ctx context.Context, _ *emitter) (any, error) {
		task := signal.ReasoningTask{
			Kind:  kind,
			Goal:  goalFor(kind, r.req.Query.Goal),
			Query: r.req.Query,
			Prior: clonePrior(r.prior),
		}

		out, err := r.steps.reason(ctx, task)
		if err != nil {
			return nil, err
		}

		r.prior[key] = out
		return json.RawMessage(out), nil
	}
}

func goalFor(kind, userGoal string) string {
	goal := taskGoals[kind]
	if g := strings.TrimSpace(userGoal); g != "" {
		goal += " Caller goal: " + g
	}
	return goal
}

func clonePrior(prior map[string]any) map[string]any {
	out := make(map[string]any, len(prior))
	for k, v := range prior {
		out[k] = v
	}
	return out
}
