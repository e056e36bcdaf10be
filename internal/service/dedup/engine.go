// internal/service/dedup/engine.go

package dedup

import (
	"net/url"
	"strings"

	"pulse/internal/domain/signal"
	"pulse/internal/logger"
)

// DefaultThreshold is the similarity at which two titles count as near-duplicates
const DefaultThreshold = 0.9

// Stats counts why signals were dropped
type Stats struct {
	Input      int `json:"input"`
	Kept       int `json:"kept"`
	Incomplete int `json:"incomplete"`
	Blocked    int `json:"blocked"`
	ExactDupes int `json:"exactDuplicates"`
	NearDupes  int `json:"nearDuplicates"`
}

// Config configures the dedup engine
type Config struct {
	Threshold      float64
	BlockedDomains []string
}

// Engine removes exact and near-duplicate signals
type Engine struct {
	threshold float64
	blocked   []string
	logger    logger.Logger
}

// NewEngine creates a dedup engine
func NewEngine(cfg Config, log logger.Logger) *Engine {
	threshold := cfg.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	blocked := make([]string, 0, len(cfg.BlockedDomains))
	for _, d := range cfg.BlockedDomains {
		if d = normalizeHost(d); d != "" {
			blocked = append(blocked, d)
		}
	}

	return &Engine{
		threshold: threshold,
		blocked:   blocked,
		logger:    log,
	}
}

type accepted struct {
	title   string
	bigrams map[string]struct{}
}

// Run filters signals, preserving first-seen order
func (e *Engine) Run(signals []signal.Signal) ([]signal.Signal, Stats) {
	stats := Stats{Input: len(signals)}
	kept := make([]signal.Signal, 0, len(signals))
	seenURLs := make(map[string]struct{}, len(signals))
	titles := make([]accepted, 0, len(signals))

	for _, s := range signals {
		link := strings.TrimSpace(s.URL)
		title := Normalize(s.Title)
		body := strings.TrimSpace(s.Snippet)
		if body == "" {
			body = strings.TrimSpace(s.Title)
		}
		if title == "" || body == "" || link == "" {
			stats.Incomplete++
			continue
		}

		if e.IsBlocked(link) {
			stats.Blocked++
			continue
		}

		if _, dup := seenURLs[link]; dup {
			stats.ExactDupes++
			continue
		}

		grams := Bigrams(title)
		if match, ok := e.nearDuplicate(title, grams, titles); ok {
			e.logger.Debug("Dropping near-duplicate signal",
				logger.String("title", s.Title),
				logger.String("matches", match),
			)
			stats.NearDupes++
			continue
		}

		seenURLs[link] = struct{}{}
		titles = append(titles, accepted{title: title, bigrams: grams})
		kept = append(kept, s)
	}

	stats.Kept = len(kept)
	return kept, stats
}

func (e *Engine) nearDuplicate(title string, grams map[string]struct{}, prior []accepted) (string, bool) {
	for _, p := range prior {
		var sim float64
		if p.title == title {
			sim = 1
		} else {
			sim = dice(grams, p.bigrams)
		}
		if sim >= e.threshold {
			return p.title, true
		}
	}
	return "", false
}

// IsBlocked reports whether the URL's host is on the blocklist or a subdomain of an entry
func (e *Engine) IsBlocked(rawURL string) bool {
	if len(e.blocked) == 0 {
		return false
	}

	host := Host(rawURL)
	if host == "" {
		return false
	}

	for _, d := range e.blocked {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Host extracts the lower-cased host of a URL without a leading "www."
func Host(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return normalizeHost(u.Hostname())
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimPrefix(h, "www.")
}
