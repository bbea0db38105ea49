// Package feeds holds the raw-feed fetch adapters.
//
// Adapters live outside the scoring core: each one turns a remote feed's
// shape into []intel.RawItem, the minimal contract the normalizer accepts.
// Fetch failures are per-source and recoverable; a broken feed yields an
// error and an empty batch, never a dead pipeline.
package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rgsec/threatdeck/internal/intel"
)

const userAgent = "threatdeck/1.0 (+https://github.com/rgsec/threatdeck)"

// Source is the interface all feed adapters implement.
type Source interface {
	// Name returns the human-readable source label; it becomes the
	// Item.Source field downstream.
	Name() string

	// Fetch retrieves the latest raw records from this source.
	Fetch(ctx context.Context) ([]intel.RawItem, error)
}

// Client is the shared HTTP fetcher. One instance serves every adapter so
// the rate limit applies across sources, not per source.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a fetch client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		// Two requests a second with a small burst keeps us polite with
		// the public feed endpoints.
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

// Get performs a rate-limited GET. The caller owns the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}
	return resp, nil
}

// GetJSON performs a rate-limited GET and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// PostJSON performs a rate-limited POST with a JSON body and decodes the
// response into v.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body any, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
