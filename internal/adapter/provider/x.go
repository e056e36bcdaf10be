// internal/adapter/provider/x.go

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	twitter "github.com/g8rswimmer/go-twitter/v2"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
)

const xTitleRunes = 120

type bearer struct {
	token string
}

func (b bearer) Add(req *http.Request) {
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", b.token))
}

// XRetriever runs a recent search against the X API v2
type XRetriever struct {
	client     *twitter.Client
	maxResults int
	base       *client
}

// NewXRetriever creates an X recent-search retriever
func NewXRetriever(host, token string, maxResults int, opts Options) *XRetriever {
	if host == "" {
		host = "https://api.twitter.com"
	}
	if maxResults < 10 || maxResults > 100 {
		maxResults = 25
	}

	base := newClient("x", opts.public())
	return &XRetriever{
		client: &twitter.Client{
			Authorizer: bearer{token: token},
			Client:     base.http,
			Host:       strings.TrimRight(host, "/"),
		},
		maxResults: maxResults,
		base:       base,
	}
}

// Retrieve implements signal.Retriever
func (x *XRetriever) Retrieve(ctx context.Context, q signal.Query) (signals []signal.Signal, err error) {
	started := time.Now()
	defer func() {
		if x.base.observer != nil {
			x.base.observer.ProviderCall(x.base.name, err, time.Since(started))
		}
	}()

	if err := x.base.limiter.Wait(ctx); err != nil {
		return nil, pipeline.Unreachable("x request not sent", err)
	}

	opts := twitter.TweetRecentSearchOpts{
		MaxResults:  x.maxResults,
		TweetFields: []twitter.TweetField{twitter.TweetFieldCreatedAt, twitter.TweetFieldText},
	}
	if start, ok := windowStart(q.TimeWindow, time.Now()); ok {
		opts.StartTime = start
	}

	resp, err := x.client.TweetRecentSearch(ctx, xQuery(q), opts)
	if err != nil {
		var apiErr *twitter.ErrorResponse
		if errors.As(err, &apiErr) {
			return nil, pipeline.Unreachable(fmt.Sprintf("x returned status code %d", apiErr.StatusCode), err)
		}
		return nil, pipeline.Unreachable("failed to reach x", err)
	}
	if resp == nil || resp.Raw == nil {
		return []signal.Signal{}, nil
	}

	signals = make([]signal.Signal, 0, len(resp.Raw.Tweets))
	for _, t := range resp.Raw.Tweets {
		if t == nil {
			continue
		}
		signals = append(signals, signal.Signal{
			Title:       headline(t.Text),
			Snippet:     t.Text,
			URL:         "https://x.com/i/web/status/" + t.ID,
			PublishedAt: t.CreatedAt,
		})
	}
	return signal.Clean(signals), nil
}

func xQuery(q signal.Query) string {
	query := q.Topic + " -is:retweet"
	if lang := strings.TrimSpace(q.Region); len(lang) == 2 {
		query += " lang:" + strings.ToLower(lang)
	}
	return query
}

// headline is the first line of a post, capped for display
func headline(text string) string {
	line := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	if utf8.RuneCountInString(line) <= xTitleRunes {
		return line
	}
	return string([]rune(line)[:xTitleRunes-1]) + "…"
}

// windowStart converts windows like 24h or 7d into a start time.
// Recent search only reaches back seven days.
func windowStart(window string, now time.Time) (time.Time, bool) {
	d, ok := parseWindow(window)
	if !ok || d >= 7*24*time.Hour {
		return time.Time{}, false
	}
	return now.Add(-d).UTC(), true
}

// parseWindow accepts Go durations plus a day suffix, e.g. 30m, 24h, 7d
func parseWindow(window string) (time.Duration, bool) {
	window = strings.ToLower(strings.TrimSpace(window))
	if window == "" {
		return 0, false
	}

	if strings.HasSuffix(window, "d") {
		var days int
		if _, err := fmt.Sscanf(window, "%dd", &days); err != nil || days <= 0 {
			return 0, false
		}
		return time.Duration(days) * 24 * time.Hour, true
	}

	d, err := time.ParseDuration(window)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
