// internal/service/classify/budget.go

package classify

import (
	"unicode/utf8"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
)

// Budget caps how much text is sent for classification
type Budget struct {
	TitleChars int
	BodyChars  int
	TotalChars int
}

// DefaultBudget returns the standard snippet budget
func DefaultBudget() Budget {
	return Budget{
		TitleChars: 160,
		BodyChars:  800,
		TotalChars: 12000,
	}
}

// BuildSnippets truncates each signal to the per-field caps and includes
// signals in order until the next one would exceed the cumulative cap
func BuildSnippets(signals []signal.Signal, b Budget) ([]signal.Snippet, error) {
	snippets := make([]signal.Snippet, 0, len(signals))
	used := 0

	for i, s := range signals {
		title := truncate(s.Title, b.TitleChars)
		body := truncate(s.Snippet, b.BodyChars)

		cost := utf8.RuneCountInString(title) + utf8.RuneCountInString(body)
		if used+cost > b.TotalChars {
			break
		}
		used += cost

		snippets = append(snippets, signal.Snippet{Index: i, Title: title, Body: body})
	}

	if len(snippets) == 0 {
		return nil, pipeline.Validation("no signals fit the classification budget")
	}
	return snippets, nil
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
