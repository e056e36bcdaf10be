// internal/adapter/provider/reddit.go

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
)

// RedditPost represents a post from Reddit search
type RedditPost struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Permalink string  `json:"permalink"`
	Subreddit string  `json:"subreddit"`
	Created   float64 `json:"created_utc"`
	SelfText  string  `json:"selftext"`
	IsSelf    bool    `json:"is_self"`
}

// RedditResponse represents the structure of the Reddit API listing
type RedditResponse struct {
	Kind string `json:"kind"`
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string     `json:"kind"`
			Data RedditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// RedditRetriever searches public Reddit posts
type RedditRetriever struct {
	baseURL string
	limit   int
	client  *client
}

// NewRedditRetriever creates a Reddit search retriever
func NewRedditRetriever(baseURL string, limit int, opts Options) *RedditRetriever {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	if limit <= 0 {
		limit = 25
	}
	return &RedditRetriever{
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   limit,
		client:  newClient("reddit", opts.public()),
	}
}

// Retrieve implements signal.Retriever
func (r *RedditRetriever) Retrieve(ctx context.Context, q signal.Query) ([]signal.Signal, error) {
	params := url.Values{}
	params.Set("q", q.Topic)
	params.Set("limit", fmt.Sprintf("%d", r.limit))
	params.Set("t", redditTimeRange(q.TimeWindow))
	params.Set("sort", "relevance")

	body, err := r.client.get(ctx, r.baseURL+"/search.json?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var listing RedditResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, pipeline.Malformed("failed to decode Reddit API response", "body: "+err.Error())
	}

	signals := make([]signal.Signal, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		signals = append(signals, r.toSignal(child.Data))
	}
	return signal.Clean(signals), nil
}

func (r *RedditRetriever) toSignal(p RedditPost) signal.Signal {
	link := p.URL
	if p.IsSelf || link == "" {
		link = r.baseURL + p.Permalink
	}

	var published string
	if p.Created > 0 {
		published = time.Unix(int64(p.Created), 0).UTC().Format(time.RFC3339)
	}

	return signal.Signal{
		Title:       p.Title,
		Snippet:     p.SelfText,
		URL:         link,
		PublishedAt: published,
	}
}

// redditTimeRange maps a query time window onto hour, day, week, month, year or all
func redditTimeRange(window string) string {
	switch strings.ToLower(strings.TrimSpace(window)) {
	case "1h", "hour":
		return "hour"
	case "24h", "1d", "day":
		return "day"
	case "", "7d", "week":
		return "week"
	case "30d", "month":
		return "month"
	case "365d", "1y", "year":
		return "year"
	case "all":
		return "all"
	default:
		return "week"
	}
}
