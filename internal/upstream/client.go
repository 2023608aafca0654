// Package upstream is the HTTP client for the model daemon this console
// proxies. The daemon is a black box: every operation here is a plain API
// call, and pull/update hand the live response body back to the relay
// instead of consuming it.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// bufferedTimeout bounds non-streaming calls. Streaming pulls carry no
// timeout at all: model blobs can take arbitrarily long, and abandonment is
// the caller's decision via context cancellation.
const bufferedTimeout = 10 * time.Second

// probeTimeout bounds the reachability check.
const probeTimeout = 2 * time.Second

// Client communicates with one daemon endpoint. Clients are cheap: the
// underlying *http.Client (and its connection pool) is shared through the
// Resolver that minted them.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client for the given base URL using httpClient.
// A nil httpClient falls back to a client with no timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the endpoint this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// IsRunning reports whether the daemon answers its tags listing with 200.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// tagsResponse mirrors the JSON returned by GET /api/tags.
type tagsResponse struct {
	Models []json.RawMessage `json:"models"`
}

// Tags returns the daemon's model list as raw JSON entries. The console
// re-encodes them untouched so daemon-specific fields survive the round
// trip.
func (c *Client) Tags(ctx context.Context) ([]json.RawMessage, error) {
	var tags tagsResponse
	if err := c.getJSON(ctx, "/api/tags", &tags); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return tags.Models, nil
}

// Ps returns the daemon's running-instance list as raw JSON entries.
func (c *Client) Ps(ctx context.Context) ([]json.RawMessage, error) {
	var ps tagsResponse
	if err := c.getJSON(ctx, "/api/ps", &ps); err != nil {
		return nil, fmt.Errorf("listing running models: %w", err)
	}
	return ps.Models, nil
}

// Show returns the daemon's detail document for one model, verbatim.
func (c *Client) Show(ctx context.Context, model string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"model": model})
	if err != nil {
		return nil, err
	}
	raw, err := c.doBuffered(ctx, http.MethodPost, "/api/show", body)
	if err != nil {
		return nil, fmt.Errorf("showing %s: %w", model, err)
	}
	return raw, nil
}

// Delete removes one model from the daemon.
func (c *Client) Delete(ctx context.Context, model string) error {
	body, err := json.Marshal(map[string]string{"model": model})
	if err != nil {
		return err
	}
	if _, err := c.doBuffered(ctx, http.MethodDelete, "/api/delete", body); err != nil {
		return fmt.Errorf("deleting %s: %w", model, err)
	}
	return nil
}

// generateRequest is the JSON body for POST /api/generate. An empty prompt
// with keep_alive > 0 loads the model; keep_alive "0" unloads it.
type generateRequest struct {
	Model     string `json:"model"`
	KeepAlive string `json:"keep_alive"`
	Stream    bool   `json:"stream"`
}

// Generate issues a promptless generate call to load or unload a model.
func (c *Client) Generate(ctx context.Context, model, keepAlive string) error {
	body, err := json.Marshal(generateRequest{Model: model, KeepAlive: keepAlive})
	if err != nil {
		return err
	}
	if _, err := c.doBuffered(ctx, http.MethodPost, "/api/generate", body); err != nil {
		return fmt.Errorf("generate %s: %w", model, err)
	}
	return nil
}

// pullRequest is the JSON body for POST /api/pull.
type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// PullStream opens the streamed pull for model and returns the live
// response. The caller owns resp.Body. No timeout is applied; cancel ctx to
// abandon the transfer. A non-2xx upstream status is returned as a
// StatusError with the body already drained and closed.
func (c *Client) PullStream(ctx context.Context, model string) (*http.Response, error) {
	body, err := json.Marshal(pullRequest{Model: model, Stream: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pulling %s: %w", model, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusErrorFromResponse(resp)
	}
	return resp, nil
}

// getJSON issues a buffered GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	raw, err := c.doBuffered(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// doBuffered issues a short-lived request and returns the whole body.
func (c *Client) doBuffered(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, bufferedTimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusErrorFromResponse(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return raw, nil
}
