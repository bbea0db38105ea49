package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rgsec/threatdeck/internal/logging"
)

// Compile-time interface satisfaction check
var _ Provider = (*HTTPProvider)(nil)

// ProviderConfig defines how to communicate with one provider API
type ProviderConfig struct {
	Name         string
	Endpoint     string
	APIKey       string
	Model        string
	AuthHeader   string            // "x-api-key" or "Authorization"
	AuthPrefix   string            // "" or "Bearer "
	ExtraHeaders map[string]string // e.g. anthropic-version

	// Request building
	BuildBody func(cfg *ProviderConfig, req Request) map[string]any

	// Response parsing
	ParseResponse func(body []byte) (content, model string, err error)
}

// HTTPProvider is a generic HTTP-based provider
type HTTPProvider struct {
	config *ProviderConfig
	client *http.Client
}

// NewHTTPProvider creates a provider from config
func NewHTTPProvider(cfg *ProviderConfig) *HTTPProvider {
	return &HTTPProvider{
		config: cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *HTTPProvider) Name() string {
	return p.config.Name
}

func (p *HTTPProvider) Available() bool {
	// Ollama needs no API key, just an endpoint
	if p.config.Name == "ollama" {
		return p.config.Endpoint != ""
	}
	return p.config.APIKey != ""
}

func (p *HTTPProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if !p.Available() {
		return Response{}, fmt.Errorf("%s provider not configured", p.config.Name)
	}

	logging.Debug("provider request", "provider", p.config.Name, "model", p.config.Model)

	body := p.config.BuildBody(p.config, req)
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}

	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.Error("provider API error", "provider", p.config.Name, "status", resp.StatusCode, "body", string(respBody))
		return Response{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	content, model, err := p.config.ParseResponse(respBody)
	if err != nil {
		return Response{}, fmt.Errorf("parse response: %w", err)
	}

	logging.Debug("provider response", "provider", p.config.Name, "model", model, "content_len", len(content))

	return Response{
		Content:     content,
		Model:       model,
		RawResponse: string(respBody),
	}, nil
}

func (p *HTTPProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")

	if p.config.AuthHeader != "" && p.config.APIKey != "" {
		req.Header.Set(p.config.AuthHeader, p.config.AuthPrefix+p.config.APIKey)
	}

	for k, v := range p.config.ExtraHeaders {
		req.Header.Set(k, v)
	}
}
