// internal/service/aggregate/aggregate.go

package aggregate

import (
	"math"
	"sort"
	"strings"

	"pulse/internal/domain/signal"
)

// Default labels used when a classification leaves a field empty
const (
	DefaultEmotion   = "neutral"
	DefaultConcern   = "general sentiment"
	DefaultNarrative = "general narrative"

	maxExampleHeadlines = 3
)

// Result is the aggregated view of one classification
type Result struct {
	Emotions          []signal.EmotionStat
	Concerns          []signal.ConcernStat
	Clusters          []signal.NarrativeCluster
	DominantEmotion   string
	DominantConcern   string
	DominantNarrative string

	// EmotionFractions maps each emotion to count/items, for snapshot diffs
	EmotionFractions map[string]float64
	// ClusterSizes maps each cluster label to its size, for snapshot diffs
	ClusterSizes map[string]int
}

// Aggregate builds emotion, concern and narrative tables for classified signals.
// provided holds clusters returned by the classification provider, if any.
func Aggregate(items []signal.ClassifiedSignal, signals []signal.Signal, provided []signal.NarrativeCluster) Result {
	res := Result{
		Emotions:         Emotions(items),
		Concerns:         Concerns(items),
		Clusters:         Clusters(items, signals, provided),
		EmotionFractions: make(map[string]float64),
		ClusterSizes:     make(map[string]int),
	}

	if len(res.Emotions) > 0 {
		res.DominantEmotion = res.Emotions[0].Emotion
	}
	if len(res.Concerns) > 0 {
		res.DominantConcern = res.Concerns[0].Label
	}
	if len(res.Clusters) > 0 {
		res.DominantNarrative = res.Clusters[0].Label
	}

	if len(items) > 0 {
		for _, e := range res.Emotions {
			res.EmotionFractions[e.Emotion] = float64(e.Count) / float64(len(items))
		}
	}
	for _, c := range res.Clusters {
		res.ClusterSizes[c.Label] += c.Size
	}

	return res
}

// Emotions counts normalized emotion labels, most frequent first
func Emotions(items []signal.ClassifiedSignal) []signal.EmotionStat {
	labels, counts := tally(items, func(it signal.ClassifiedSignal) string {
		return normalizeLabel(it.Emotion, DefaultEmotion)
	})

	total := max(1, len(items))
	stats := make([]signal.EmotionStat, len(labels))
	for i, l := range labels {
		stats[i] = signal.EmotionStat{
			Emotion:    l,
			Count:      counts[l],
			Percentage: int(math.Round(100 * float64(counts[l]) / float64(total))),
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}

// Concerns counts normalized concern labels, most frequent first
func Concerns(items []signal.ClassifiedSignal) []signal.ConcernStat {
	labels, counts := tally(items, func(it signal.ClassifiedSignal) string {
		return normalizeLabel(it.Concern, DefaultConcern)
	})

	stats := make([]signal.ConcernStat, len(labels))
	for i, l := range labels {
		stats[i] = signal.ConcernStat{Label: l, Count: counts[l]}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}

// Clusters returns provider clusters when present, otherwise derives them
// by grouping items on cluster, then narrative, then the default label
func Clusters(items []signal.ClassifiedSignal, signals []signal.Signal, provided []signal.NarrativeCluster) []signal.NarrativeCluster {
	var clusters []signal.NarrativeCluster
	if len(provided) > 0 {
		clusters = make([]signal.NarrativeCluster, len(provided))
		for i, c := range provided {
			c.ExampleHeadlines = uniqueHeadlines(c.ExampleHeadlines)
			clusters[i] = c
		}
	} else {
		clusters = deriveClusters(items, signals)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size > clusters[j].Size
	})
	return clusters
}

func deriveClusters(items []signal.ClassifiedSignal, signals []signal.Signal) []signal.NarrativeCluster {
	index := make(map[string]int)
	var clusters []signal.NarrativeCluster

	for _, it := range items {
		label := strings.TrimSpace(it.Cluster)
		if label == "" {
			label = strings.TrimSpace(it.Narrative)
		}
		if label == "" {
			label = DefaultNarrative
		}

		pos, ok := index[label]
		if !ok {
			pos = len(clusters)
			index[label] = pos
			clusters = append(clusters, signal.NarrativeCluster{Label: label, ExampleHeadlines: []string{}})
		}

		c := &clusters[pos]
		c.Size++
		if headline, ok := headlineAt(signals, it.Index); ok {
			c.ExampleHeadlines = appendHeadline(c.ExampleHeadlines, headline)
		}
	}

	return clusters
}

func headlineAt(signals []signal.Signal, idx int) (string, bool) {
	if idx < 0 || idx >= len(signals) {
		return "", false
	}
	title := strings.TrimSpace(signals[idx].Title)
	return title, title != ""
}

func appendHeadline(headlines []string, h string) []string {
	if len(headlines) >= maxExampleHeadlines {
		return headlines
	}
	for _, existing := range headlines {
		if existing == h {
			return headlines
		}
	}
	return append(headlines, h)
}

func uniqueHeadlines(in []string) []string {
	out := make([]string, 0, min(len(in), maxExampleHeadlines))
	for _, h := range in {
		if h = strings.TrimSpace(h); h != "" {
			out = appendHeadline(out, h)
		}
	}
	return out
}

func normalizeLabel(label, fallback string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return fallback
	}
	return label
}

// tally counts keys in first-seen order
func tally(items []signal.ClassifiedSignal, key func(signal.ClassifiedSignal) string) ([]string, map[string]int) {
	var order []string
	counts := make(map[string]int)
	for _, it := range items {
		k := key(it)
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}
	return order, counts
}
