// internal/domain/signal/sanitize.go

package signal

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is an untrusted signal-shaped record from a retrieval provider
type Record map[string]any

var fieldAliases = map[string][]string{
	"title":       {"title", "headline"},
	"snippet":     {"snippet", "description", "body", "text"},
	"url":         {"url", "link"},
	"publishedAt": {"publishedAt", "published_at", "date"},
}

// Sanitize coerces records to signals, dropping any without a title or URL
func Sanitize(records []Record) []Signal {
	signals := make([]Signal, 0, len(records))
	for _, r := range records {
		s := Signal{
			Title:       r.field("title"),
			Snippet:     r.field("snippet"),
			URL:         r.field("url"),
			PublishedAt: r.field("publishedAt"),
		}
		if s.Title == "" || s.URL == "" {
			continue
		}
		signals = append(signals, s)
	}
	return signals
}

// Clean trims typed signals and drops any without a title or URL
func Clean(signals []Signal) []Signal {
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		s.Title = strings.TrimSpace(s.Title)
		s.Snippet = strings.TrimSpace(s.Snippet)
		s.URL = strings.TrimSpace(s.URL)
		s.PublishedAt = strings.TrimSpace(s.PublishedAt)
		if s.Title == "" || s.URL == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (r Record) field(name string) string {
	for _, key := range fieldAliases[name] {
		if v, ok := r[key]; ok {
			if s := coerce(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func coerce(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
