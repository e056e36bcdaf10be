// internal/adapter/provider/multi.go

package provider

import (
	"context"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
)

// NamedRetriever pairs a retriever with a label for logging
type NamedRetriever struct {
	Name      string
	Retriever signal.Retriever
}

// MultiRetriever queries each source in turn and concatenates the results
type MultiRetriever struct {
	sources []NamedRetriever
	logger  logger.Logger
}

// NewMultiRetriever creates a fan-in retriever
func NewMultiRetriever(log logger.Logger, sources ...NamedRetriever) *MultiRetriever {
	return &MultiRetriever{sources: sources, logger: log}
}

// Retrieve implements signal.Retriever. Sources are called sequentially;
// the call succeeds if at least one source does.
func (m *MultiRetriever) Retrieve(ctx context.Context, q signal.Query) ([]signal.Signal, error) {
	if len(m.sources) == 0 {
		return nil, pipeline.Internal("no retrieval sources configured", nil)
	}

	var (
		all      []signal.Signal
		firstErr error
		ok       int
	)
	for _, src := range m.sources {
		if err := ctx.Err(); err != nil {
			return nil, pipeline.Unreachable("retrieval interrupted", err)
		}

		signals, err := src.Retriever.Retrieve(ctx, q)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			m.logger.Warn("Retrieval source failed",
				logger.String("source", src.Name),
				logger.Error(err),
			)
			continue
		}

		ok++
		all = append(all, signals...)
		m.logger.Debug("Retrieval source answered",
			logger.String("source", src.Name),
			logger.Int("signals", len(signals)),
		)
	}

	if ok == 0 {
		return nil, firstErr
	}
	return all, nil
}
