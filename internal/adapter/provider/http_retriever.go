// internal/adapter/provider/http_retriever.go

package provider

import (
	"bytes"
	"context"
	"encoding/json"

	"pulse/internal/domain/pipeline"
	"pulse/internal/domain/signal"
)

// HTTPRetriever posts the query to a generic search endpoint that answers
// with loosely typed signal records
type HTTPRetriever struct {
	endpoint string
	client   *client
}

// NewHTTPRetriever creates a retriever for endpoint
func NewHTTPRetriever(endpoint string, opts Options) *HTTPRetriever {
	return &HTTPRetriever{
		endpoint: endpoint,
		client:   newClient("retrieval provider", opts),
	}
}

// Retrieve implements signal.Retriever
func (r *HTTPRetriever) Retrieve(ctx context.Context, q signal.Query) ([]signal.Signal, error) {
	body, err := r.client.postJSON(ctx, r.endpoint, q)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}
	return signal.Sanitize(records), nil
}

// decodeRecords accepts a bare array or an object wrapping one under
// results, signals or items
func decodeRecords(body []byte) ([]signal.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, pipeline.Malformed("retrieval response is not JSON", "body: "+err.Error())
	}

	var list []any
	switch v := root.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, key := range []string{"results", "signals", "items"} {
			if l, ok := v[key].([]any); ok {
				list = l
				break
			}
		}
		if list == nil {
			return nil, pipeline.Malformed("retrieval response has no result list", "results: required")
		}
	default:
		return nil, pipeline.Malformed("retrieval response has no result list", "body: expected array or object")
	}

	records := make([]signal.Record, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			records = append(records, signal.Record(m))
		}
	}
	return records, nil
}
