package config

// Defaults contains system-wide default configurations.
// These values are used when specific components don't specify their own.
type Defaults struct {
	// LLM provider default for all agents
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// Sampling defaults applied when an agent model config omits them
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
}

// RetentionConfig controls the background session sweep.
type RetentionConfig struct {
	// SweepIntervalMinutes is how often the cleanup loop runs.
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes,omitempty"`
	// PersistedRetentionDays bounds how long persisted session snapshots
	// are kept when a database is configured.
	PersistedRetentionDays int `yaml:"persisted_retention_days,omitempty"`
}

// SearchConfig describes the product-search backend consumed by the
// sales, styling, and knowledge agents.
type SearchConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	APIKey         string `yaml:"api_key,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

func applyDefaults(cfg *Config) {
	if cfg.Defaults == nil {
		cfg.Defaults = &Defaults{}
	}
	if cfg.Defaults.LLMProvider == "" {
		cfg.Defaults.LLMProvider = "openai"
	}
	if cfg.Defaults.Temperature == nil {
		temp := 0.7
		cfg.Defaults.Temperature = &temp
	}
	if cfg.Defaults.MaxTokens == nil {
		tokens := 1000
		cfg.Defaults.MaxTokens = &tokens
	}

	if cfg.Retention == nil {
		cfg.Retention = &RetentionConfig{}
	}
	if cfg.Retention.SweepIntervalMinutes <= 0 {
		cfg.Retention.SweepIntervalMinutes = 60
	}
	if cfg.Retention.PersistedRetentionDays <= 0 {
		cfg.Retention.PersistedRetentionDays = 30
	}

	if cfg.Search != nil && cfg.Search.TimeoutSeconds <= 0 {
		cfg.Search.TimeoutSeconds = 10
	}

	for name, provider := range cfg.LLMProviders {
		if provider.TimeoutSeconds <= 0 {
			provider.TimeoutSeconds = 30
		}
		if provider.MaxRetries <= 0 {
			provider.MaxRetries = 3
		}
		cfg.LLMProviders[name] = provider
	}
}
