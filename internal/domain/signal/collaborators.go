// internal/domain/signal/collaborators.go

package signal

import (
	"context"
	"encoding/json"
)

// Retriever turns a query into raw signals
type Retriever interface {
	// Retrieve returns sanitized signals for the query
	Retrieve(ctx context.Context, q Query) ([]Signal, error)
}

// Classifier assigns emotion, concern and narrative labels to snippets
type Classifier interface {
	// Classify returns a schema-validated classification result
	Classify(ctx context.Context, req ClassificationRequest) (ClassificationResult, error)
}

// Reasoner produces stage-specific JSON objects for opportunity runs
type Reasoner interface {
	// Reason returns the JSON object produced for the task
	Reason(ctx context.Context, task ReasoningTask) (json.RawMessage, error)
}

// SnapshotStore persists the last analysis snapshot per key
type SnapshotStore interface {
	// Get returns the snapshot for key, or nil if none exists
	Get(ctx context.Context, key string) (*AnalysisSnapshot, error)

	// Put overwrites the snapshot for key
	Put(ctx context.Context, key string, snap AnalysisSnapshot) error
}
