package config

import (
	"fmt"
	"strings"
)

// validate checks the assembled configuration for internal consistency.
// Called once at the end of Initialize().
func validate(cfg *Config) error {
	for id, model := range cfg.AgentModels {
		if err := validateAgentModel(cfg, id, model); err != nil {
			return err
		}
	}

	for name, provider := range cfg.LLMProviders {
		if !provider.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type",
				fmt.Errorf("%w: %q", ErrInvalidValue, provider.Type))
		}
	}

	if cfg.Search != nil && cfg.Search.BaseURL != "" &&
		!strings.HasPrefix(cfg.Search.BaseURL, "http://") &&
		!strings.HasPrefix(cfg.Search.BaseURL, "https://") {
		return NewValidationError("search", "base_url", "",
			fmt.Errorf("%w: must be an http(s) URL", ErrInvalidValue))
	}

	return nil
}

func validateAgentModel(cfg *Config, id string, model AgentModelConfig) error {
	if model.PrimaryModel == "" {
		return NewValidationError("agent", id, "primary_model", ErrMissingRequiredField)
	}

	for field, ref := range map[string]string{
		"primary_model":  model.PrimaryModel,
		"fallback_model": model.FallbackModel,
	} {
		if ref == "" {
			continue // fallback is optional
		}
		provider, _, err := SplitModelRef(ref)
		if err != nil {
			return NewValidationError("agent", id, field, err)
		}
		// Providers may be supplied purely via environment at runtime;
		// only reject references when providers are configured and the
		// named one is absent.
		if len(cfg.LLMProviders) > 0 {
			if _, ok := cfg.LLMProviders[provider]; !ok {
				return NewValidationError("agent", id, field,
					fmt.Errorf("%w: provider %q", ErrInvalidReference, provider))
			}
		}
	}

	if model.Temperature != nil && (*model.Temperature < 0 || *model.Temperature > 2) {
		return NewValidationError("agent", id, "temperature",
			fmt.Errorf("%w: must be in [0, 2], got %v", ErrInvalidValue, *model.Temperature))
	}
	if model.MaxTokens != nil && *model.MaxTokens <= 0 {
		return NewValidationError("agent", id, "max_tokens",
			fmt.Errorf("%w: must be positive, got %d", ErrInvalidValue, *model.MaxTokens))
	}
	return nil
}

// SplitModelRef splits a "provider/model" reference into its parts.
func SplitModelRef(ref string) (provider, model string, err error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: model reference %q must be provider/model", ErrInvalidValue, ref)
	}
	return parts[0], parts[1], nil
}
