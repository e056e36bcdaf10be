// internal/adapter/events/hub.go

package events

import (
	"context"
	"sync"

	"pulse/internal/domain/pipeline"
)

// Hub is an in-process fan-out used when no message bus is configured
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan pipeline.StageEvent]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[chan pipeline.StageEvent]struct{})}
}

// Publish delivers ev to every watcher of runID; slow watchers miss events
func (h *Hub) Publish(_ context.Context, runID string, ev pipeline.StageEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.watchers[runID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Watch registers a watcher for runID
func (h *Hub) Watch(_ context.Context, runID string) (<-chan pipeline.StageEvent, func(), error) {
	ch := make(chan pipeline.StageEvent, watchBuffer)

	h.mu.Lock()
	if h.watchers[runID] == nil {
		h.watchers[runID] = make(map[chan pipeline.StageEvent]struct{})
	}
	h.watchers[runID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.watchers[runID], ch)
			if len(h.watchers[runID]) == 0 {
				delete(h.watchers, runID)
			}
			close(ch)
		})
	}
	return ch, stop, nil
}
