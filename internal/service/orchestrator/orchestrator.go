// internal/service/orchestrator/orchestrator.go

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
	"pulse/internal/service/classify"
)

// Variant selects which stages C through E run
type Variant string

const (
	VariantSentiment   Variant = "sentiment"
	VariantOpportunity Variant = "opportunity"
)

// ParseVariant validates a variant name, defaulting to sentiment
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "":
		return VariantSentiment, nil
	case VariantSentiment, VariantOpportunity:
		return Variant(s), nil
	default:
		return "", pipeline.Validation(fmt.Sprintf("unknown variant %q", s))
	}
}

// EventSink receives a copy of every emitted event
type EventSink interface {
	Publish(ctx context.Context, runID string, ev pipeline.StageEvent) error
}

// Config contains orchestrator settings
type Config struct {
	Variant     Variant
	EventBuffer int
	Budget      classify.Budget
	SnapshotKey string
}

// Request starts one streaming run
type Request struct {
	RunID       string
	Query       signal.Query
	Variant     Variant
	SnapshotKey string
}

// Orchestrator sequences stages A through E and streams their events
type Orchestrator struct {
	steps  *steps
	sink   EventSink
	config Config
	logger logger.Logger
}

// New creates an orchestrator. sink may be nil.
func New(deps Deps, sink EventSink, config Config) *Orchestrator {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 16
	}
	if config.Variant == "" {
		config.Variant = VariantSentiment
	}
	if config.SnapshotKey == "" {
		config.SnapshotKey = "default"
	}

	st := newSteps(deps, config.Budget)
	return &Orchestrator{
		steps:  st,
		sink:   sink,
		config: config,
		logger: st.deps.Logger,
	}
}

// Run validates the request and starts the producer. The returned channel
// yields events until the run completes, fails, or ctx is cancelled, and is
// then closed. Nothing is emitted once ctx is done.
func (o *Orchestrator) Run(ctx context.Context, req Request) (<-chan pipeline.StageEvent, error) {
	if err := req.Query.Validate(); err != nil {
		return nil, err
	}
	if req.Variant == "" {
		req.Variant = o.config.Variant
	}
	if _, err := ParseVariant(string(req.Variant)); err != nil {
		return nil, err
	}
	if req.SnapshotKey == "" {
		req.SnapshotKey = o.config.SnapshotKey
	}

	events := make(chan pipeline.StageEvent, o.config.EventBuffer)
	em := &emitter{
		ctx:    ctx,
		out:    events,
		sink:   o.sink,
		runID:  req.RunID,
		logger: o.logger,
	}

	go func() {
		defer close(events)
		o.execute(ctx, req, em)
	}()

	return events, nil
}

type stageFunc func(ctx context.Context, em *emitter) (any, error)

type stageSpec struct {
	stage   pipeline.Stage
	message string
	resume  pipeline.ResumePoint
	run     stageFunc
}

// plan returns the stages for one run; each run gets fresh state
func (o *Orchestrator) plan(req Request) []stageSpec {
	if req.Variant == VariantOpportunity {
		return (&opportunityRun{steps: o.steps, req: req}).stages()
	}
	return (&sentimentRun{steps: o.steps, req: req}).stages()
}

func (o *Orchestrator) execute(ctx context.Context, req Request, em *emitter) {
	variant := string(req.Variant)
	rec := o.steps.deps.Recorder
	log := o.logger.With(
		logger.String("run_id", req.RunID),
		logger.String("variant", variant),
	)

	rec.RunStarted(variant)
	log.Info("Run started", logger.String("topic", req.Query.Topic))

	machine := NewMachine()
	stages := o.plan(req)

	cancelled := func() {
		_ = machine.Cancel()
		rec.RunFinished(variant, "cancelled")
		log.Info("Run cancelled", logger.String("stage", string(machine.Stage())))
	}

	for _, spec := range stages {
		if err := machine.Advance(spec.stage); err != nil {
			log.Error("Stage out of order", logger.Error(err))
			return
		}

		if !em.emit(pipeline.StageEvent{Stage: spec.stage, Status: pipeline.StatusStart, Message: spec.message}) {
			cancelled()
			return
		}

		began := time.Now()
		data, err := spec.run(ctx, em)
		if ctx.Err() != nil {
			cancelled()
			return
		}

		if err != nil {
			perr := pipeline.AtStage(err, spec.stage, spec.resume)
			_ = machine.Fail(perr)
			em.emit(pipeline.ErrorEvent(perr.Stage, perr))
			rec.RunFinished(variant, string(perr.Kind))
			log.Warn("Stage failed",
				logger.String("stage", string(perr.Stage)),
				logger.String("kind", string(perr.Kind)),
				logger.Error(perr),
			)
			return
		}

		rec.StageCompleted(variant, string(spec.stage), time.Since(began))
		log.Debug("Stage complete", logger.String("stage", string(spec.stage)))

		if !em.emit(pipeline.StageEvent{Stage: spec.stage, Status: pipeline.StatusComplete, Data: data}) {
			cancelled()
			return
		}
	}

	if err := machine.Complete(); err != nil {
		log.Error("Run did not reach final stage", logger.Error(err))
		return
	}
	rec.RunFinished(variant, string(StateComplete))
	log.Info("Run complete")
}

// emitter publishes events to the bounded channel and the optional sink
type emitter struct {
	ctx    context.Context
	out    chan<- pipeline.StageEvent
	sink   EventSink
	runID  string
	logger logger.Logger
}

// emit delivers ev unless the run has been cancelled
func (e *emitter) emit(ev pipeline.StageEvent) bool {
	if e.ctx.Err() != nil {
		return false
	}

	select {
	case e.out <- ev:
	case <-e.ctx.Done():
		return false
	}

	if e.sink != nil {
		if err := e.sink.Publish(e.ctx, e.runID, ev); err != nil {
			e.logger.Warn("Failed to mirror stage event",
				logger.String("run_id", e.runID),
				logger.Error(err),
			)
		}
	}
	return true
}

func (e *emitter) progress(stage pipeline.Stage, msg string, data any) bool {
	return e.emit(pipeline.StageEvent{Stage: stage, Status: pipeline.StatusProgress, Message: msg, Data: data})
}
