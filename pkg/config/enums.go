package config

// LLMProviderType defines supported LLM providers.
// Every provider speaks the OpenAI-compatible chat-completions protocol;
// the type selects default endpoints and auth behavior.
type LLMProviderType string

const (
	// LLMProviderTypeOpenAI is the OpenAI API
	LLMProviderTypeOpenAI LLMProviderType = "openai"
	// LLMProviderTypeCompatible is any OpenAI-compatible endpoint (vLLM, gateways)
	LLMProviderTypeCompatible LLMProviderType = "openai-compatible"
	// LLMProviderTypeOllama is a local Ollama server
	LLMProviderTypeOllama LLMProviderType = "ollama"
)

// IsValid checks if the LLM provider type is valid
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeOpenAI, LLMProviderTypeCompatible, LLMProviderTypeOllama:
		return true
	default:
		return false
	}
}
