package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wardrobe-labs/concierge/pkg/config"
)

// Service routes per-agent completion requests to providers, applying
// the agent's model configuration and falling back from the primary to
// the fallback model on failure.
type Service struct {
	cfg     *config.Config
	clients map[string]Client
}

// NewService builds a service with one HTTP client per configured
// provider.
func NewService(cfg *config.Config) *Service {
	clients := make(map[string]Client, len(cfg.LLMProviders))
	for name, providerCfg := range cfg.LLMProviders {
		clients[name] = NewHTTPClient(name, providerCfg)
	}
	return &Service{cfg: cfg, clients: clients}
}

// NewServiceWithClients builds a service over explicit clients.
// Used by tests to inject mock providers.
func NewServiceWithClients(cfg *config.Config, clients map[string]Client) *Service {
	return &Service{cfg: cfg, clients: clients}
}

// Chat performs one completion against a named provider and model.
func (s *Service) Chat(ctx context.Context, provider string, req Request) (*Response, error) {
	client, ok := s.clients[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrLLMProviderNotFound, provider)
	}

	resp, err := client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Provider = provider
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return resp, nil
}

// AgentCompletion resolves agentID's model configuration and performs a
// completion, trying the primary model and then the fallback model.
// Both failing returns the last error; callers treat that as a signal
// to use their own fallback behavior, never as fatal.
func (s *Service) AgentCompletion(ctx context.Context, agentID string, messages []Message) (*Response, error) {
	model, err := s.cfg.AgentModel(agentID)
	if err != nil {
		return nil, err
	}

	refs := []string{model.PrimaryModel}
	if model.FallbackModel != "" {
		refs = append(refs, model.FallbackModel)
	}

	var lastErr error
	for i, ref := range refs {
		provider, modelName, err := config.SplitModelRef(ref)
		if err != nil {
			lastErr = err
			continue
		}

		resp, err := s.Chat(ctx, provider, Request{
			Model:       modelName,
			Messages:    messages,
			Temperature: *model.Temperature,
			MaxTokens:   *model.MaxTokens,
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if i == 0 && len(refs) > 1 {
				slog.Warn("Primary model failed, trying fallback",
					"agent_id", agentID, "model", ref, "error", err)
			}
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("all models failed for agent %s: %w", agentID, lastErr)
}
