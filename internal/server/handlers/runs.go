// internal/server/handlers/runs.go

package handlers

import (
	"context"
	"net/http"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
	"pulse/internal/service/orchestrator"
)

// Header names used by the run stream
const (
	HeaderClientID = "X-Client-ID"
	HeaderRunID    = "X-Run-ID"
)

// Runner starts streaming analysis runs
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (<-chan pipeline.StageEvent, error)
}

// Registry tracks one in-flight run per caller
type Registry interface {
	Begin(ctx context.Context, clientID string) (context.Context, string, func())
	Cancel(clientID string) bool
}

// RunHandler serves the streaming run endpoint
type RunHandler struct {
	runner   Runner
	registry Registry
	logger   logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runner Runner, registry Registry, log logger.Logger) *RunHandler {
	return &RunHandler{
		runner:   runner,
		registry: registry,
		logger:   log,
	}
}

type runRequest struct {
	signal.Query
	Variant     string `json:"variant"`
	SnapshotKey string `json:"snapshotKey"`
}

// Stream runs the pipeline and writes one NDJSON event per line. A new run
// from the same X-Client-ID cancels the previous one.
func (h *RunHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := decodeBody(w, r, &body); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	variant, err := orchestrator.ParseVariant(body.Variant)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	ctx, runID, release := h.registry.Begin(r.Context(), r.Header.Get(HeaderClientID))
	defer release()

	events, err := h.runner.Run(ctx, orchestrator.Request{
		RunID:       runID,
		Query:       body.Query,
		Variant:     variant,
		SnapshotKey: body.SnapshotKey,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set(HeaderRunID, runID)
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	log := h.logger.With(logger.String("run_id", runID))
	for ev := range events {
		if err := pipeline.EncodeEvent(w, ev); err != nil {
			log.Warn("Stream client went away", logger.Error(err))
			release()
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Cancel stops the caller's in-flight run
func (h *RunHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(HeaderClientID)
	if clientID == "" {
		respondWithError(w, h.logger, pipeline.Validation(HeaderClientID+" header is required"))
		return
	}

	if !h.registry.Cancel(clientID) {
		respondWithJSON(w, http.StatusNotFound, errorResponse{
			Error: "no active run for client",
			Kind:  string(pipeline.KindValidation),
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
