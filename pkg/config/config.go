// Package config loads and validates the layered configuration for the
// concierge service: YAML files with env expansion, built-in defaults,
// and environment-driven timeout knobs.
package config

// Config is the umbrella configuration object returned by Initialize()
// and used throughout the application.
type Config struct {
	configDir string

	// System-wide defaults
	Defaults *Defaults

	// Turn and session timing knobs (environment-driven)
	Timeouts *Timeouts

	// Background sweep configuration
	Retention *RetentionConfig

	// Product-search backend; nil when unconfigured (agents degrade to
	// their built-in sample catalog)
	Search *SearchConfig

	// LLM backends keyed by provider name
	LLMProviders map[string]LLMProviderConfig

	// Per-agent model selection keyed by agent id (plus the analyzer)
	AgentModels map[string]AgentModelConfig
}

// Stats contains statistics about loaded configuration
type Stats struct {
	AgentModels  int
	LLMProviders int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	return Stats{
		AgentModels:  len(c.AgentModels),
		LLMProviders: len(c.LLMProviders),
	}
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// AgentModel retrieves the model configuration for an agent, with the
// system defaults filled in for unset sampling parameters.
func (c *Config) AgentModel(agentID string) (AgentModelConfig, error) {
	model, ok := c.AgentModels[agentID]
	if !ok {
		return AgentModelConfig{}, NewValidationError("agent", agentID, "", ErrAgentNotFound)
	}
	if model.Temperature == nil {
		model.Temperature = c.Defaults.Temperature
	}
	if model.MaxTokens == nil {
		model.MaxTokens = c.Defaults.MaxTokens
	}
	return model, nil
}

// LLMProvider retrieves a provider configuration by name.
func (c *Config) LLMProvider(name string) (LLMProviderConfig, error) {
	provider, ok := c.LLMProviders[name]
	if !ok {
		return LLMProviderConfig{}, NewValidationError("llm_provider", name, "", ErrLLMProviderNotFound)
	}
	return provider, nil
}
