// internal/adapter/provider/reasoner.go

package provider

import (
	"context"
	"encoding/json"
	"strings"

	"pulse/internal/domain/signal"
	"pulse/internal/service/classify"
)

// HTTPReasoner posts reasoning tasks to per-kind endpoints
type HTTPReasoner struct {
	endpoints map[string]string
	fallback  string
	client    *client
}

// NewHTTPReasoner creates a reasoner. endpoints maps a task kind to a URL;
// kinds without an entry use fallback.
func NewHTTPReasoner(fallback string, endpoints map[string]string, opts Options) *HTTPReasoner {
	return &HTTPReasoner{
		endpoints: endpoints,
		fallback:  fallback,
		client:    newClient("reasoning provider", opts),
	}
}

// Reason implements signal.Reasoner
func (r *HTTPReasoner) Reason(ctx context.Context, task signal.ReasoningTask) (json.RawMessage, error) {
	url := r.fallback
	if u := strings.TrimSpace(r.endpoints[task.Kind]); u != "" {
		url = u
	}

	body, err := r.client.postJSON(ctx, url, task)
	if err != nil {
		return nil, err
	}
	return classify.ExtractObject(body)
}
