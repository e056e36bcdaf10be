// internal/domain/signal/model.go

package signal

import (
	"strings"
	"time"

	"pulse/internal/domain/pipeline"
)

// Signal is one retrieved piece of public text
type Signal struct {
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// NoIndex marks a classified item that does not point at any snippet
const NoIndex = -1

// ClassifiedSignal holds the labels assigned to the snippet at Index
type ClassifiedSignal struct {
	Index     int    `json:"index"`
	Emotion   string `json:"emotion"`
	Concern   string `json:"concern"`
	Narrative string `json:"narrative"`
	Cluster   string `json:"cluster"`
}

// NarrativeCluster is a named group of signals sharing a storyline
type NarrativeCluster struct {
	Label            string   `json:"label"`
	Size             int      `json:"size"`
	ExampleHeadlines []string `json:"exampleHeadlines"`
}

// EmotionStat is one row of the emotion distribution
type EmotionStat struct {
	Emotion    string `json:"emotion"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// ConcernStat is one row of the concern table
type ConcernStat struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SignalScores explains how a suggestion was scored
type SignalScores struct {
	Relevance int      `json:"relevance"`
	Recency   int      `json:"recency"`
	Diversity int      `json:"diversity"`
	Rationale []string `json:"rationale"`
}

// Provenance records where a suggestion came from
type Provenance struct {
	Sources []string `json:"sources"`
	Notes   []string `json:"notes"`
}

// Suggestion is a scored, presentable unit derived from one signal
type Suggestion struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Summary         string       `json:"summary"`
	Score           int          `json:"score"`
	Confidence      int          `json:"confidence"`
	ConfidenceLabel string       `json:"confidenceLabel"`
	Signals         SignalScores `json:"signals"`
	Provenance      Provenance   `json:"provenance"`
}

// AnalysisSnapshot is the persisted summary of the previous run
type AnalysisSnapshot struct {
	EmotionDistribution map[string]float64 `json:"emotionDistribution"`
	Clusters            map[string]int     `json:"clusters"`
	Timestamp           time.Time          `json:"timestamp"`
}

// RisingNarrative is a cluster that grew since the previous run
type RisingNarrative struct {
	Label string `json:"label"`
	Delta int    `json:"delta"`
}

// Dashboard is the sentiment report produced by one run
type Dashboard struct {
	Topic             string             `json:"topic"`
	SignalCount       int                `json:"signalCount"`
	ItemCount         int                `json:"itemCount"`
	Emotions          []EmotionStat      `json:"emotions"`
	Concerns          []ConcernStat      `json:"concerns"`
	Clusters          []NarrativeCluster `json:"clusters"`
	DominantEmotion   string             `json:"dominantEmotion,omitempty"`
	DominantConcern   string             `json:"dominantConcern,omitempty"`
	DominantNarrative string             `json:"dominantNarrative,omitempty"`
	Volatility        int                `json:"volatility"`
	RisingNarratives  []RisingNarrative  `json:"risingNarratives"`
	Suggestions       []Suggestion       `json:"suggestions,omitempty"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

// Query describes what to look for
type Query struct {
	Topic       string `json:"topic"`
	Region      string `json:"region"`
	TimeWindow  string `json:"timeWindow"`
	SourceFocus string `json:"sourceFocus"`
	Goal        string `json:"goal,omitempty"`
}

// Validate checks the required request fields
func (q Query) Validate() error {
	if strings.TrimSpace(q.Topic) == "" {
		return pipeline.Validation("topic is required")
	}
	return nil
}

// Snippet is the budgeted form of a signal sent for classification
type Snippet struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ClassificationRequest is the payload sent to a classification provider
type ClassificationRequest struct {
	Query
	Snippets []Snippet `json:"snippets"`
}

// ClassificationResult is a validated classification provider response
type ClassificationResult struct {
	Items    []ClassifiedSignal `json:"items"`
	Clusters []NarrativeCluster `json:"clusters,omitempty"`
}

// ReasoningTask is one request to an opportunity, scoring or playbook provider
type ReasoningTask struct {
	Kind  string         `json:"kind"`
	Goal  string         `json:"goal"`
	Query Query          `json:"query"`
	Prior map[string]any `json:"prior"`
}
