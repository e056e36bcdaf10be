// internal/config/sources.go

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeedSource is one RSS or Atom feed
type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Sources lists retrieval feeds and domains excluded before dedup
type Sources struct {
	Feeds          []FeedSource `yaml:"feeds"`
	BlockedDomains []string     `yaml:"blocked_domains"`
}

// LoadSources reads a sources file. An empty path yields empty sources.
func LoadSources(path string) (Sources, error) {
	if path == "" {
		return Sources{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Sources{}, fmt.Errorf("error reading sources file: %w", err)
	}

	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sources{}, fmt.Errorf("error parsing sources file %s: %w", path, err)
	}

	for i, f := range s.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			return Sources{}, fmt.Errorf("feed %d in %s has no url", i, path)
		}
		if f.Name == "" {
			s.Feeds[i].Name = f.URL
		}
	}
	return s, nil
}

// MergeBlocked combines configured and file-provided blocked domains without repeats
func MergeBlocked(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, d := range list {
			d = strings.ToLower(strings.TrimSpace(d))
			if d == "" {
				continue
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}
