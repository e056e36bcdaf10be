// internal/adapter/provider/classifier.go

package provider

import (
	"context"

	"pulse/internal/domain/signal"
	"pulse/internal/service/classify"
)

// HTTPClassifier sends budgeted snippets to a classification endpoint
type HTTPClassifier struct {
	endpoint string
	client   *client
}

// NewHTTPClassifier creates a classifier for endpoint
func NewHTTPClassifier(endpoint string, opts Options) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   newClient("classification provider", opts),
	}
}

// Classify implements signal.Classifier
func (c *HTTPClassifier) Classify(ctx context.Context, req signal.ClassificationRequest) (signal.ClassificationResult, error) {
	body, err := c.client.postJSON(ctx, c.endpoint, req)
	if err != nil {
		return signal.ClassificationResult{}, err
	}
	return classify.ParseResponse(body)
}
