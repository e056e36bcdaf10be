// internal/adapter/storage/snapshot_store.go

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pulse/internal/domain/signal"
)

// ErrCorruptSnapshot is returned when a stored snapshot cannot be decoded
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

func encodeSnapshot(snap signal.AnalysisSnapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("error marshaling snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(key string, data []byte) (*signal.AnalysisSnapshot, error) {
	var snap signal.AnalysisSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrCorruptSnapshot, key, err)
	}
	return &snap, nil
}

// MemorySnapshotStore keeps snapshots in process memory
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]signal.AnalysisSnapshot
}

// NewMemorySnapshotStore creates an empty in-memory store
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: make(map[string]signal.AnalysisSnapshot)}
}

// Get returns a copy of the snapshot for key, or nil if none exists
func (s *MemorySnapshotStore) Get(_ context.Context, key string) (*signal.AnalysisSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[key]
	if !ok {
		return nil, nil
	}
	out := cloneSnapshot(snap)
	return &out, nil
}

// Put overwrites the snapshot for key
func (s *MemorySnapshotStore) Put(_ context.Context, key string, snap signal.AnalysisSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snaps[key] = cloneSnapshot(snap)
	return nil
}

func cloneSnapshot(in signal.AnalysisSnapshot) signal.AnalysisSnapshot {
	out := signal.AnalysisSnapshot{
		EmotionDistribution: make(map[string]float64, len(in.EmotionDistribution)),
		Clusters:            make(map[string]int, len(in.Clusters)),
		Timestamp:           in.Timestamp,
	}
	for k, v := range in.EmotionDistribution {
		out.EmotionDistribution[k] = v
	}
	for k, v := range in.Clusters {
		out.Clusters[k] = v
	}
	return out
}
