// Package brain is the boundary to generative-text providers.
//
// The brief builder is its only consumer. Providers are interchangeable
// behind one interface; a manager picks the first available one so a
// misconfigured provider degrades to the next, and ultimately to the
// caller's deterministic fallback.
package brain

import (
	"context"
)

// Provider is the interface for generative-text providers
type Provider interface {
	// Name returns the provider name (e.g., "claude", "openai")
	Name() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Generate sends a prompt and returns the response
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a prompt request to a provider
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Response is the provider's response
type Response struct {
	Content     string
	Model       string
	RawResponse string // Raw API response body for logging/debugging
}

// Manager holds multiple providers with fallback
type Manager struct {
	providers []Provider
	preferred string
}

// NewManager creates an empty provider manager
func NewManager() *Manager {
	return &Manager{providers: make([]Provider, 0)}
}

// Add registers a provider
func (m *Manager) Add(p Provider) {
	m.providers = append(m.providers, p)
}

// SetPreferred sets the preferred provider by name
func (m *Manager) SetPreferred(name string) {
	m.preferred = name
}

// Available returns the first available provider, preferring the preferred
// one. Nil when nothing is configured.
func (m *Manager) Available() Provider {
	if m.preferred != "" {
		for _, p := range m.providers {
			if p.Name() == m.preferred && p.Available() {
				return p
			}
		}
	}
	for _, p := range m.providers {
		if p.Available() {
			return p
		}
	}
	return nil
}

// ListAvailable returns names of all available providers
func (m *Manager) ListAvailable() []string {
	var names []string
	for _, p := range m.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}
