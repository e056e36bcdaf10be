// internal/service/snapshot/engine.go

package snapshot

import (
	"context"
	"time"

	"pulse/internal/domain/signal"
	"pulse/internal/logger"
)

// Current is the state of the run being diffed
type Current struct {
	EmotionDistribution map[string]float64
	Clusters            []signal.NarrativeCluster
}

// Diff is the cross-run comparison for one run
type Diff struct {
	Volatility int                      `json:"volatility"`
	Rising     []signal.RisingNarrative `json:"risingNarratives"`
	Baseline   *time.Time               `json:"baseline,omitempty"`
	Persisted  bool                     `json:"persisted"`
}

// Engine compares runs against the last persisted snapshot.
//
// The snapshot is read once and written once per run with no lock between the
// two, so concurrent runs on the same key race: the last writer wins and the
// loser's volatility may have been computed against a stale baseline.
type Engine struct {
	store  signal.SnapshotStore
	logger logger.Logger
	now    func() time.Time
}

// NewEngine creates a snapshot diff engine backed by store
func NewEngine(store signal.SnapshotStore, log logger.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// Diff computes volatility and rising narratives against the snapshot stored
// under key, then overwrites it with the current state.
// A missing or unreadable snapshot is treated as an empty baseline and a failed
// write is reported through Persisted; neither fails the run. Nothing is
// written once ctx is done, so an abandoned run never replaces the baseline.
func (e *Engine) Diff(ctx context.Context, key string, cur Current) Diff {
	prevDist := map[string]float64{}
	prevClusters := map[string]int{}

	var diff Diff

	prev, err := e.store.Get(ctx, key)
	switch {
	case err != nil:
		e.logger.Warn("Ignoring unreadable snapshot",
			logger.String("key", key),
			logger.Error(err),
		)
	case prev != nil:
		if prev.EmotionDistribution != nil {
			prevDist = prev.EmotionDistribution
		}
		if prev.Clusters != nil {
			prevClusters = prev.Clusters
		}
		ts := prev.Timestamp
		diff.Baseline = &ts
	}

	curDist := cur.EmotionDistribution
	if curDist == nil {
		curDist = map[string]float64{}
	}

	diff.Volatility = Volatility(curDist, prevDist)
	diff.Rising = Rising(cur.Clusters, prevClusters)

	_, sizes := ClusterSizes(cur.Clusters)
	next := signal.AnalysisSnapshot{
		EmotionDistribution: curDist,
		Clusters:            sizes,
		Timestamp:           e.now().UTC(),
	}

	if err := ctx.Err(); err != nil {
		e.logger.Debug("Skipping snapshot write for abandoned run",
			logger.String("key", key),
			logger.Error(err),
		)
		return diff
	}

	if err := e.store.Put(ctx, key, next); err != nil {
		e.logger.Warn("Failed to persist snapshot",
			logger.String("key", key),
			logger.Error(err),
		)
	} else {
		diff.Persisted = true
	}

	e.logger.Debug("Computed snapshot diff",
		logger.String("key", key),
		logger.Int("volatility", diff.Volatility),
		logger.Int("rising", len(diff.Rising)),
		logger.Bool("had_baseline", diff.Baseline != nil),
	)

	return diff
}
