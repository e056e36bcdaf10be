// internal/service/orchestrator/registry.go

package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type activeRun struct {
	id     string
	cancel context.CancelFunc
}

// RunRegistry tracks the in-flight run of each caller. Beginning a new run
// for a caller cancels the one it replaces.
type RunRegistry struct {
	mu   sync.Mutex
	runs map[string]activeRun
}

// NewRunRegistry creates an empty registry
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]activeRun)}
}

// Begin allocates a run ID and a cancellable context for clientID.
// release must be called when the run ends. An empty clientID is never
// tracked, so anonymous runs never cancel each other.
func (r *RunRegistry) Begin(ctx context.Context, clientID string) (context.Context, string, func()) {
	runID := uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)

	if clientID == "" {
		return runCtx, runID, cancel
	}

	r.mu.Lock()
	if prev, ok := r.runs[clientID]; ok {
		prev.cancel()
	}
	r.runs[clientID] = activeRun{id: runID, cancel: cancel}
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if cur, ok := r.runs[clientID]; ok && cur.id == runID {
			delete(r.runs, clientID)
		}
		r.mu.Unlock()
		cancel()
	}
	return runCtx, runID, release
}

// Cancel stops the caller's in-flight run, reporting whether one existed
func (r *RunRegistry) Cancel(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.runs[clientID]
	if !ok {
		return false
	}
	cur.cancel()
	delete(r.runs, clientID)
	return true
}

// Active returns the ID of the caller's in-flight run
func (r *RunRegistry) Active(clientID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.runs[clientID]
	return cur.id, ok
}
