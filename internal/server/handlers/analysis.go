// internal/server/handlers/analysis.go

package handlers

import (
	"context"
	"net/http"

	"pulse/internal/domain/signal"
	"pulse/internal/logger"
	"pulse/internal/service/orchestrator"
)

// TwoStageAnalyzer runs retrieval and reasoning as separate requests
type TwoStageAnalyzer interface {
	Retrieve(ctx context.Context, q signal.Query) (orchestrator.RetrievalResult, error)
	Reason(ctx context.Context, q signal.Query, signals []signal.Signal) (signal.Dashboard, error)
}

// AnalysisHandler handles the non-streaming analysis endpoints
type AnalysisHandler struct {
	analyzer TwoStageAnalyzer
	logger   logger.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analyzer TwoStageAnalyzer, log logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		logger:   log,
	}
}

// Signals retrieves and deduplicates signals for a query
func (h *AnalysisHandler) Signals(w http.ResponseWriter, r *http.Request) {
	var q signal.Query
	if err := decodeBody(w, r, &q); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	res, err := h.analyzer.Retrieve(r.Context(), q)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

type analysisRequest struct {
	signal.Query
	Signals []signal.Signal `json:"signals"`
}

// Analyze classifies previously retrieved signals into a dashboard
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var body analysisRequest
	if err := decodeBody(w, r, &body); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	dash, err := h.analyzer.Reason(r.Context(), body.Query, body.Signals)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, dash)
}
