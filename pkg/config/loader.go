package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConciergeYAMLConfig represents the complete concierge.yaml file structure
type ConciergeYAMLConfig struct {
	Defaults  *Defaults                   `yaml:"defaults"`
	Agents    map[string]AgentModelConfig `yaml:"agents"`
	Search    *SearchConfig               `yaml:"search"`
	Retention *RetentionConfig            `yaml:"retention"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file structure
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir (both optional; built-ins apply)
//  2. Expand environment variables
//  3. Merge built-in + user-defined agent model configs
//  4. Read timeout knobs from the environment
//  5. Apply default values
//  6. Validate all configuration
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	loader := &configLoader{configDir: configDir}

	conciergeConfig, err := loader.loadConciergeYAML()
	if err != nil {
		return nil, NewLoadError("concierge.yaml", err)
	}

	providersConfig, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	agentModels, err := mergeAgentModels(GetBuiltinAgentModels(), conciergeConfig.Agents)
	if err != nil {
		return nil, fmt.Errorf("failed to merge agent model configs: %w", err)
	}

	timeouts, err := TimeoutsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to read timeout configuration: %w", err)
	}

	cfg := &Config{
		configDir:    configDir,
		Defaults:     conciergeConfig.Defaults,
		Timeouts:     timeouts,
		Retention:    conciergeConfig.Retention,
		Search:       conciergeConfig.Search,
		LLMProviders: providersConfig.LLMProviders,
		AgentModels:  agentModels,
	}
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"agent_models", stats.AgentModels,
		"llm_providers", stats.LLMProviders,
		"turn_timeout", timeouts.Turn,
		"agent_timeout", timeouts.AgentInvocation,
		"session_idle", timeouts.SessionIdle)

	return cfg, nil
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadConciergeYAML() (*ConciergeYAMLConfig, error) {
	cfg := &ConciergeYAMLConfig{}
	if err := l.loadYAML("concierge.yaml", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *configLoader) loadLLMProvidersYAML() (*LLMProvidersYAMLConfig, error) {
	cfg := &LLMProvidersYAMLConfig{}
	if err := l.loadYAML("llm-providers.yaml", cfg); err != nil {
		return nil, err
	}
	if cfg.LLMProviders == nil {
		cfg.LLMProviders = map[string]LLMProviderConfig{}
	}
	return cfg, nil
}

// loadYAML reads a single YAML file with env expansion. A missing file is
// not an error — every file is optional and built-ins fill the gaps.
func (l *configLoader) loadYAML(name string, out any) error {
	path := filepath.Join(l.configDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("Config file not present, using built-ins", "file", name)
			return nil
		}
		return err
	}

	expanded := ExpandEnv(data)
	if err := yaml.Unmarshal(expanded, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

// mergeAgentModels overlays user-defined agent model configs on the
// built-ins. User fields win; unset user fields keep the built-in value.
func mergeAgentModels(builtin, user map[string]AgentModelConfig) (map[string]AgentModelConfig, error) {
	merged := make(map[string]AgentModelConfig, len(builtin))
	for id, model := range builtin {
		merged[id] = model
	}
	for id, userModel := range user {
		base, ok := merged[id]
		if !ok {
			merged[id] = userModel
			continue
		}
		if err := mergo.Merge(&userModel, base); err != nil {
			return nil, fmt.Errorf("merging agent %q: %w", id, err)
		}
		merged[id] = userModel
	}
	return merged, nil
}
