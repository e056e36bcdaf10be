// internal/adapter/provider/rss.go

package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
	"pulse/internal/logger"
)

// Feed is one RSS or Atom source
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// RSSRetriever filters configured feeds for items mentioning the topic
type RSSRetriever struct {
	feeds  []Feed
	parser *gofeed.Parser
	base   *client
	logger logger.Logger
	now    func() time.Time
}

// NewRSSRetriever creates a retriever over feeds
func NewRSSRetriever(feeds []Feed, opts Options, log logger.Logger) *RSSRetriever {
	base := newClient("rss", opts.public())
	parser := gofeed.NewParser()
	parser.Client = base.http
	parser.UserAgent = userAgent

	return &RSSRetriever{
		feeds:  feeds,
		parser: parser,
		base:   base,
		logger: log,
		now:    time.Now,
	}
}

// Retrieve implements signal.Retriever. A failing feed is skipped; the call
// fails only when every feed fails.
func (r *RSSRetriever) Retrieve(ctx context.Context, q signal.Query) ([]signal.Signal, error) {
	if len(r.feeds) == 0 {
		return nil, pipeline.Internal("no RSS feeds configured", nil)
	}

	tokens := strings.Fields(strings.ToLower(q.Topic))
	var since time.Time
	if d, ok := parseWindow(q.TimeWindow); ok {
		since = r.now().Add(-d)
	}

	var (
		signals  []signal.Signal
		failures int
		lastErr  error
	)
	for _, f := range r.feeds {
		items, err := r.fetch(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return nil, pipeline.Unreachable("rss retrieval interrupted", ctx.Err())
			}
			failures++
			lastErr = err
			r.logger.Warn("Skipping feed",
				logger.String("feed", f.Name),
				logger.String("url", f.URL),
				logger.Error(err),
			)
			continue
		}

		for _, item := range items {
			if !mentions(item, tokens) || tooOld(item, since) {
				continue
			}
			signals = append(signals, toSignal(item))
		}
	}

	if failures == len(r.feeds) {
		return nil, pipeline.Unreachable("every RSS feed failed", lastErr)
	}
	return signal.Clean(signals), nil
}

func (r *RSSRetriever) fetch(ctx context.Context, f Feed) (items []*gofeed.Item, err error) {
	started := time.Now()
	defer func() {
		if r.base.observer != nil {
			r.base.observer.ProviderCall(r.base.name, err, time.Since(started))
		}
	}()

	if err := r.base.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := r.parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, fmt.Errorf("feed %s returned status code %d", f.Name, httpErr.StatusCode)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", f.URL, err)
	}
	return feed.Items, nil
}

func mentions(item *gofeed.Item, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	text := strings.ToLower(item.Title + " " + item.Description)
	for _, t := range tokens {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func tooOld(item *gofeed.Item, since time.Time) bool {
	if since.IsZero() {
		return false
	}
	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	return published != nil && published.Before(since)
}

func toSignal(item *gofeed.Item) signal.Signal {
	s := signal.Signal{
		Title:   item.Title,
		Snippet: item.Description,
		URL:     item.Link,
	}
	if s.Snippet == "" {
		s.Snippet = item.Content
	}

	switch {
	case item.PublishedParsed != nil:
		s.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		s.PublishedAt = item.UpdatedParsed.UTC().Format(time.RFC3339)
	default:
		s.PublishedAt = item.Published
	}
	return s
}
