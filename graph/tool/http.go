package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPTool exposes a JSON-over-HTTP endpoint as a Tool.
//
// The call's arguments are POSTed as a JSON object; the endpoint must answer
// with a JSON object, which becomes the tool result. Non-2xx responses fail
// the call; 429 and 5xx are reported as transient so the runner retries them.
type HTTPTool struct {
	desc     Descriptor
	endpoint string
	client   *http.Client
	headers  map[string]string
}

// HTTPOption configures an HTTPTool.
type HTTPOption func(*HTTPTool)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTool) { t.client = c }
}

// WithHeader adds a header to every request, e.g. an Authorization token.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTool) { t.headers[key] = value }
}

// NewHTTPTool creates a tool backed by the given endpoint.
func NewHTTPTool(desc Descriptor, endpoint string, opts ...HTTPOption) *HTTPTool {
	t := &HTTPTool{
		desc:     desc,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		headers:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTool) Describe() Descriptor { return t.desc }

func (t *HTTPTool) Validate(map[string]any) error { return nil }

func (t *HTTPTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, &ExecutionError{Tool: t.desc.Name, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ExecutionError{Tool: t.desc.Name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &ExecutionError{Tool: t.desc.Name, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, &ExecutionError{
			Tool:      t.desc.Name,
			Transient: transient,
			Err:       fmt.Errorf("endpoint returned %s", resp.Status),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExecutionError{Tool: t.desc.Name, Transient: true, Err: err}
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &ExecutionError{Tool: t.desc.Name, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return result, nil
}
