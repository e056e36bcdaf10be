// internal/adapter/provider/client.go

// Package provider contains the HTTP-backed retrieval, classification and
// reasoning collaborators.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"pulse/internal/domain/pipeline"
)

const (
	userAgent    = "pulse/1.0"
	maxBodyBytes = 8 << 20
)

// Observer receives one callback per outbound request
type Observer interface {
	ProviderCall(provider string, err error, d time.Duration)
}

// Options configure a provider client
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	APIKey            string
	Observer          Observer
	HTTPClient        *http.Client
}

// public drops credentials meant for the configured collaborators. Third-party
// sources never receive them.
func (o Options) public() Options {
	o.APIKey = ""
	return o
}

// client is the paced HTTP transport shared by every adapter
type client struct {
	name     string
	http     *http.Client
	limiter  *rate.Limiter
	apiKey   string
	observer Observer
}

func newClient(name string, opts Options) *client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &client{
		name:     name,
		http:     hc,
		limiter:  rate.NewLimiter(limit, burst),
		apiKey:   opts.APIKey,
		observer: opts.Observer,
	}
}

// get issues a GET request and returns the response body
func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pipeline.Internal("failed to create request", err)
	}
	return c.do(req)
}

// postJSON sends payload as JSON and returns the response body
func (c *client) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, pipeline.Internal("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, pipeline.Internal("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) do(req *http.Request) (body []byte, err error) {
	started := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ProviderCall(c.name, err, time.Since(started))
		}
	}()

	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, pipeline.Unreachable(c.name+" request not sent", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pipeline.Unreachable("failed to reach "+c.name, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, pipeline.Unreachable("failed to read "+c.name+" response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, pipeline.Unreachable(fmt.Sprintf("%s returned status code %d", c.name, resp.StatusCode), nil)
	}

	return body, nil
}
