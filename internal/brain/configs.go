package brain

import (
	"encoding/json"
	"strings"
)

// Provider configurations. Credentials come from the application config,
// never from package-level globals.

// FromSettings builds a provider from the configured name. An empty or
// unrecognized name returns nil, which callers treat as fallback-only mode.
func FromSettings(name, apiKey, endpoint, model string) Provider {
	switch name {
	case "claude":
		return NewHTTPProvider(ClaudeConfig(apiKey, model))
	case "openai":
		return NewHTTPProvider(OpenAIConfig(apiKey, model))
	case "ollama":
		return NewHTTPProvider(OllamaConfig(endpoint, model))
	}
	return nil
}

// ChainSettings carries resolved credentials for every provider the
// fallback chain may register. Model applies to the preferred provider only;
// the spares run on their defaults.
type ChainSettings struct {
	Preferred  string
	Model      string
	ClaudeKey  string
	OpenAIKey  string
	OllamaHost string
}

// NewChain assembles the provider manager from whatever credentials are
// present, so an unavailable preferred provider degrades to the next one
// that can serve. Callers hand Manager.Available() to the brief builder;
// nil means fallback-only mode.
func NewChain(s ChainSettings) *Manager {
	m := NewManager()
	m.SetPreferred(s.Preferred)

	modelFor := func(name string) string {
		if name == s.Preferred {
			return s.Model
		}
		return ""
	}

	if s.ClaudeKey != "" || s.Preferred == "claude" {
		m.Add(FromSettings("claude", s.ClaudeKey, "", modelFor("claude")))
	}
	if s.OpenAIKey != "" || s.Preferred == "openai" {
		m.Add(FromSettings("openai", s.OpenAIKey, "", modelFor("openai")))
	}
	// Ollama defaults its endpoint to localhost and would always claim
	// availability, so it joins the chain only when a host is actually
	// configured or it is the explicit preference.
	if s.OllamaHost != "" || s.Preferred == "ollama" {
		m.Add(FromSettings("ollama", "", s.OllamaHost, modelFor("ollama")))
	}
	return m
}

func ClaudeConfig(apiKey, model string) *ProviderConfig {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	return &ProviderConfig{
		Name:       "claude",
		Endpoint:   "https://api.anthropic.com/v1/messages",
		APIKey:     apiKey,
		Model:      model,
		AuthHeader: "x-api-key",
		AuthPrefix: "",
		ExtraHeaders: map[string]string{
			"anthropic-version": "2023-06-01",
		},
		BuildBody:     buildClaudeBody,
		ParseResponse: parseClaudeResponse,
	}
}

func OpenAIConfig(apiKey, model string) *ProviderConfig {
	if model == "" {
		model = "gpt-4o"
	}
	return &ProviderConfig{
		Name:          "openai",
		Endpoint:      "https://api.openai.com/v1/chat/completions",
		APIKey:        apiKey,
		Model:         model,
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		BuildBody:     buildOpenAIBody,
		ParseResponse: parseOpenAIResponse,
	}
}

func OllamaConfig(endpoint, model string) *ProviderConfig {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &ProviderConfig{
		Name:          "ollama",
		Endpoint:      strings.TrimSuffix(endpoint, "/") + "/api/generate",
		Model:         model,
		AuthHeader:    "",
		BuildBody:     buildOllamaBody,
		ParseResponse: parseOllamaResponse,
	}
}

// Body builders

func buildClaudeBody(cfg *ProviderConfig, req Request) map[string]any {
	body := map[string]any{
		"model":      cfg.Model,
		"max_tokens": maxTokensOr(req.MaxTokens, 2048),
		"messages":   []map[string]string{{"role": "user", "content": req.UserPrompt}},
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}
	return body
}

func buildOpenAIBody(cfg *ProviderConfig, req Request) map[string]any {
	messages := []map[string]string{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.UserPrompt})

	return map[string]any{
		"model":                 cfg.Model,
		"max_completion_tokens": maxTokensOr(req.MaxTokens, 2048),
		"messages":              messages,
	}
}

func buildOllamaBody(cfg *ProviderConfig, req Request) map[string]any {
	prompt := req.UserPrompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.UserPrompt
	}
	return map[string]any{
		"model":  cfg.Model,
		"prompt": prompt,
		"stream": false,
	}
}

// Response parsers

func parseClaudeResponse(body []byte) (string, string, error) {
	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", err
	}
	var texts []string
	for _, c := range resp.Content {
		if c.Type == "text" {
			texts = append(texts, c.Text)
		}
	}
	return strings.Join(texts, "\n\n"), resp.Model, nil
}

func parseOpenAIResponse(body []byte) (string, string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", err
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, resp.Model, nil
	}
	return "", resp.Model, nil
}

func parseOllamaResponse(body []byte) (string, string, error) {
	var resp struct {
		Response string `json:"response"`
		Model    string `json:"model"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", err
	}
	return resp.Response, resp.Model, nil
}

func maxTokensOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
