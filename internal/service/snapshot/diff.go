// internal/service/snapshot/diff.go

package snapshot

import (
	"math"
	"sort"

	"pulse/internal/domain/signal"
)

// MaxRising caps the number of rising narratives reported
const MaxRising = 5

// Volatility is the L1 distance between two emotion distributions scaled to 0..100
func Volatility(current, previous map[string]float64) int {
	labels := make(map[string]struct{}, len(current)+len(previous))
	for l := range current {
		labels[l] = struct{}{}
	}
	for l := range previous {
		labels[l] = struct{}{}
	}

	var sum float64
	for l := range labels {
		sum += math.Abs(current[l] - previous[l])
	}
	sum = math.Max(0, math.Min(2, sum))

	return int(math.Round(math.Min(1, sum/2) * 100))
}

// Rising returns the clusters that grew since the previous run, largest growth
// first, ties in cluster order, at most MaxRising entries
func Rising(current []signal.NarrativeCluster, previous map[string]int) []signal.RisingNarrative {
	labels, sizes := ClusterSizes(current)

	rising := make([]signal.RisingNarrative, 0, len(labels))
	for _, l := range labels {
		if delta := sizes[l] - previous[l]; delta > 0 {
			rising = append(rising, signal.RisingNarrative{Label: l, Delta: delta})
		}
	}

	sort.SliceStable(rising, func(i, j int) bool {
		return rising[i].Delta > rising[j].Delta
	})

	if len(rising) > MaxRising {
		rising = rising[:MaxRising]
	}
	return rising
}

// ClusterSizes sums cluster sizes per label, returning labels in first-seen order
func ClusterSizes(clusters []signal.NarrativeCluster) ([]string, map[string]int) {
	var labels []string
	sizes := make(map[string]int, len(clusters))
	for _, c := range clusters {
		if _, seen := sizes[c.Label]; !seen {
			labels = append(labels, c.Label)
		}
		sizes[c.Label] += c.Size
	}
	return labels, sizes
}
