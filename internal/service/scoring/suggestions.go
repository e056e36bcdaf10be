// internal/service/scoring/suggestions.go

package scoring

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"pulse/internal/domain/signal"
	"pulse/internal/service/dedup"
)

const summaryLimit = 280

// UniqueDomains counts the distinct hosts across signals
func UniqueDomains(signals []signal.Signal) int {
	hosts := make(map[string]struct{}, len(signals))
	for _, s := range signals {
		if h := dedup.Host(s.URL); h != "" {
			hosts[h] = struct{}{}
		}
	}
	return len(hosts)
}

// BuildSuggestions scores every signal against the topic and ranks them
func BuildSuggestions(topic string, signals []signal.Signal, now time.Time) []signal.Suggestion {
	domains := UniqueDomains(signals)
	diversity := Diversity(domains)

	suggestions := make([]signal.Suggestion, 0, len(signals))
	for _, s := range signals {
		relevance := Relevance(topic, s.Title+" "+s.Snippet)
		days := DaysSince(s.PublishedAt, now)
		recency := Recency(days)

		score := Weighted([]WeightedValue{
			{Value: float64(relevance), Weight: 0.45},
			{Value: float64(recency), Weight: 0.35},
			{Value: float64(diversity), Weight: 0.20},
		})
		confidence := Confidence(ConfidenceInput{
			SourceCount:    domains,
			DiversityScore: diversity,
			RecencyScore:   recency,
		})

		rationale := []string{
			fmt.Sprintf("Relevance %d from topic term overlap", relevance),
			fmt.Sprintf("Diversity %d across %d source domains", diversity, domains),
		}
		var notes []string
		if days == nil {
			rationale = append(rationale, fmt.Sprintf("Recency %d, publish date unknown", recency))
			notes = append(notes, "publish date unknown")
		} else {
			rationale = append(rationale, fmt.Sprintf("Recency %d, published %.1f days ago", recency, *days))
		}
		if host := dedup.Host(s.URL); host != "" {
			notes = append(notes, "via "+host)
		}

		suggestions = append(suggestions, signal.Suggestion{
			ID:              uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.URL)).String(),
			Title:           s.Title,
			Summary:         summarize(s),
			Score:           score,
			Confidence:      confidence,
			ConfidenceLabel: ConfidenceLabel(confidence),
			Signals: signal.SignalScores{
				Relevance: relevance,
				Recency:   recency,
				Diversity: diversity,
				Rationale: rationale,
			},
			Provenance: signal.Provenance{
				Sources: []string{s.URL},
				Notes:   notes,
			},
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	return suggestions
}

func summarize(s signal.Signal) string {
	text := s.Snippet
	if text == "" {
		text = s.Title
	}
	if utf8.RuneCountInString(text) <= summaryLimit {
		return text
	}
	return string([]rune(text)[:summaryLimit]) + "…"
}
