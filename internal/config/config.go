package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the persistent application configuration
type Config struct {
	// Brief builder / LLM collaborator settings
	Brief BriefConfig `json:"brief"`

	// Feed adapter settings
	Feeds FeedConfig `json:"feeds"`

	// HTTP serving settings
	Server ServerConfig `json:"server"`
}

// BriefConfig configures the generative-text collaborator behind the brief
// builder. An empty provider (or a provider without credentials) means
// fallback-only mode: deterministic templated briefs, no outbound calls.
type BriefConfig struct {
	Provider string `json:"provider,omitempty"` // "claude", "openai", "ollama" or "" for fallback-only
	APIKey   string `json:"api_key,omitempty"`  // key for the chosen provider
	Endpoint string `json:"endpoint,omitempty"` // custom endpoint, mainly for Ollama
	Model    string `json:"model,omitempty"`

	// Per-provider credential slots for the fallback chain. Filled from
	// APIKey/Endpoint and the environment by AutoPopulateFromEnv; a
	// misconfigured preferred provider degrades to whichever of these can
	// serve.
	ClaudeKey  string `json:"claude_key,omitempty"`
	OpenAIKey  string `json:"openai_key,omitempty"`
	OllamaHost string `json:"ollama_host,omitempty"`

	TimeoutMS int `json:"timeout_ms"` // bounded wait before falling back
	TopK      int `json:"top_k"`      // how many ranked items get briefed
}

// FeedConfig controls the fetch adapters.
type FeedConfig struct {
	PollMinutes     int    `json:"poll_minutes"`
	NVDLimit        int    `json:"nvd_limit"`
	RSSLimit        int    `json:"rss_limit"`
	AttackLimit     int    `json:"attack_limit"`
	ThreatFoxKey    string `json:"threatfox_key,omitempty"`
	ThreatFoxLimit  int    `json:"threatfox_limit"`
	ThreatFoxDays   int    `json:"threatfox_days"`
	RequestTimeoutS int    `json:"request_timeout_s"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// DefaultConfig returns sensible defaults: fallback-only briefs, all public
// feeds on, ThreatFox off until a key is configured.
func DefaultConfig() *Config {
	return &Config{
		Brief: BriefConfig{
			Provider:  "",
			TimeoutMS: 20000,
			TopK:      5,
		},
		Feeds: FeedConfig{
			PollMinutes:     15,
			NVDLimit:        5,
			RSSLimit:        5,
			AttackLimit:     20,
			ThreatFoxLimit:  50,
			ThreatFoxDays:   1,
			RequestTimeoutS: 20,
		},
		Server: ServerConfig{
			Addr: ":8400",
		},
	}
}

// Path returns the path to the config file
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".threatdeck", "config.json")
}

// Load reads config from disk, or returns defaults populated from the
// environment. A corrupt config file degrades to defaults rather than
// failing startup.
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}
	cfg.AutoPopulateFromEnv()
	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := Path()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// AutoPopulateFromEnv fills unset fields from environment variables. File
// values win over the environment.
func (c *Config) AutoPopulateFromEnv() {
	// The primary credential flows into the matching per-provider slot
	// before the environment is consulted, so file values stay authoritative.
	switch c.Brief.Provider {
	case "claude":
		if c.Brief.ClaudeKey == "" {
			c.Brief.ClaudeKey = c.Brief.APIKey
		}
	case "openai":
		if c.Brief.OpenAIKey == "" {
			c.Brief.OpenAIKey = c.Brief.APIKey
		}
	case "ollama":
		if c.Brief.OllamaHost == "" {
			c.Brief.OllamaHost = c.Brief.Endpoint
		}
	}

	if c.Brief.ClaudeKey == "" {
		c.Brief.ClaudeKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Brief.OpenAIKey == "" {
		c.Brief.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Brief.OllamaHost == "" {
		c.Brief.OllamaHost = os.Getenv("OLLAMA_HOST")
	}

	if c.Brief.Provider == "" {
		// No provider chosen yet: pick one the credentials can serve.
		if c.Brief.ClaudeKey != "" {
			c.Brief.Provider = "claude"
			c.Brief.APIKey = c.Brief.ClaudeKey
		} else if c.Brief.OpenAIKey != "" {
			c.Brief.Provider = "openai"
			c.Brief.APIKey = c.Brief.OpenAIKey
		}
	}

	if c.Feeds.ThreatFoxKey == "" {
		c.Feeds.ThreatFoxKey = os.Getenv("THREATFOX_AUTH_KEY")
	}
}
