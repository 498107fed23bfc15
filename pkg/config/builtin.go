package config

// AnalyzerModelKey is the agent-model registry key used by the
// collaboration analyzer (it is not a routable agent).
const AnalyzerModelKey = "collaboration_analyzer"

// GetBuiltinAgentModels returns the built-in per-agent model selection.
// User configuration overrides these entry by entry.
func GetBuiltinAgentModels() map[string]AgentModelConfig {
	temp := func(v float64) *float64 { return &v }
	tokens := func(v int) *int { return &v }

	return map[string]AgentModelConfig{
		"reception_agent": {
			PrimaryModel:  "openai/gpt-4o-mini",
			FallbackModel: "openai/gpt-3.5-turbo",
			Temperature:   temp(0.7),
			MaxTokens:     tokens(800),
		},
		"sales_agent": {
			PrimaryModel:  "openai/gpt-4o",
			FallbackModel: "openai/gpt-4o-mini",
			Temperature:   temp(0.7),
			MaxTokens:     tokens(1200),
		},
		"order_agent": {
			PrimaryModel:  "openai/gpt-4o-mini",
			FallbackModel: "openai/gpt-3.5-turbo",
			Temperature:   temp(0.3),
			MaxTokens:     tokens(800),
		},
		"knowledge_agent": {
			PrimaryModel:  "openai/gpt-4o-mini",
			FallbackModel: "openai/gpt-3.5-turbo",
			Temperature:   temp(0.5),
			MaxTokens:     tokens(1000),
		},
		"styling_agent": {
			PrimaryModel:  "openai/gpt-4o",
			FallbackModel: "openai/gpt-4o-mini",
			Temperature:   temp(0.8),
			MaxTokens:     tokens(1200),
		},
		AnalyzerModelKey: {
			PrimaryModel:  "openai/gpt-4o-mini",
			FallbackModel: "openai/gpt-3.5-turbo",
			Temperature:   temp(0.2),
			MaxTokens:     tokens(600),
		},
	}
}
