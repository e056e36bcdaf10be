// internal/service/scoring/scores.go

package scoring

import (
	"math"
	"strings"
	"time"
)

// Confidence labels
const (
	LabelHigh        = "High"
	LabelMedium      = "Medium"
	LabelEarlySignal = "Early signal"
)

// WeightedValue is one term of a weighted average
type WeightedValue struct {
	Value  float64
	Weight float64
}

// ConfidenceInput holds the factors behind a confidence score
type ConfidenceInput struct {
	SourceCount    int
	DiversityScore int
	RecencyScore   int
}

// Relevance scores how many topic tokens appear in text
func Relevance(topic, text string) int {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(topic)))
	if len(tokens) == 0 {
		return 40
	}

	haystack := strings.ToLower(text)
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			hits++
		}
	}

	return clamp(round(100*float64(hits)/float64(len(tokens))), 35, 100)
}

// Recency buckets an age in days; nil means the date was missing or unparseable
func Recency(days *float64) int {
	if days == nil {
		return 35
	}

	switch d := *days; {
	case d <= 1:
		return 95
	case d <= 3:
		return 85
	case d <= 7:
		return 70
	case d <= 14:
		return 58
	case d <= 30:
		return 45
	default:
		return 30
	}
}

// Diversity scores the number of distinct source domains
func Diversity(uniqueDomains int) int {
	switch {
	case uniqueDomains >= 5:
		return 90
	case uniqueDomains == 4:
		return 80
	case uniqueDomains == 3:
		return 70
	case uniqueDomains == 2:
		return 55
	default:
		return 40
	}
}

// Confidence combines source count, diversity and recency
func Confidence(in ConfidenceInput) int {
	sourceScore := clamp(in.SourceCount*18, 35, 95)
	score := Weighted([]WeightedValue{
		{Value: float64(sourceScore), Weight: 0.4},
		{Value: float64(in.DiversityScore), Weight: 0.3},
		{Value: float64(in.RecencyScore), Weight: 0.3},
	})
	return clamp(score, 0, 100)
}

// ConfidenceLabel names a confidence score
func ConfidenceLabel(score int) string {
	switch {
	case score >= 80:
		return LabelHigh
	case score >= 60:
		return LabelMedium
	default:
		return LabelEarlySignal
	}
}

// Weighted is the rounded weighted mean, or 0 when the weights sum to 0
func Weighted(values []WeightedValue) int {
	var sum, total float64
	for _, v := range values {
		sum += v.Value * v.Weight
		total += v.Weight
	}
	if total == 0 {
		return 0
	}
	return round(sum / total)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"02 Jan 2006",
}

// ParseDate parses the date formats providers commonly emit
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysSince returns the non-negative age of publishedAt in days, or nil if it cannot be parsed
func DaysSince(publishedAt string, now time.Time) *float64 {
	t, ok := ParseDate(publishedAt)
	if !ok {
		return nil
	}
	days := math.Max(0, now.Sub(t).Hours()/24)
	return &days
}

// RecencyFromDate scores a raw published date relative to now
func RecencyFromDate(publishedAt string, now time.Time) int {
	return Recency(DaysSince(publishedAt, now))
}

func round(f float64) int {
	return int(math.Round(f))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
