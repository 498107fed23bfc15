package config

// LLMProviderConfig describes one reachable LLM backend.
type LLMProviderConfig struct {
	Type    LLMProviderType `yaml:"type"`
	APIKey  string          `yaml:"api_key,omitempty"`
	BaseURL string          `yaml:"base_url,omitempty"`
	// TimeoutSeconds bounds a single chat-completion round trip.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
	MaxRetries     int `yaml:"max_retries,omitempty"`
}

// AgentModelConfig selects models and sampling parameters for one agent.
// Models are written "provider/model", e.g. "openai/gpt-4o-mini". When the
// primary model fails the fallback model is tried before giving up.
type AgentModelConfig struct {
	PrimaryModel  string   `yaml:"primary_model,omitempty"`
	FallbackModel string   `yaml:"fallback_model,omitempty"`
	Temperature   *float64 `yaml:"temperature,omitempty"`
	MaxTokens     *int     `yaml:"max_tokens,omitempty"`
}
