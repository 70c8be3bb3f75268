package llm

import (
	"fmt"

	"github.com/chris/tally/internal/catalog"
)

const defaultOllamaBaseURL = "http://localhost:11434/v1"

type ProviderConfig struct {
	Provider  string
	APIKey    string
	AuthToken string // OAuth token (Bearer auth), anthropic only
	BaseURL   string
}

func NewClient(cfg ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case catalog.ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL), nil
	case catalog.ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg.AuthToken, cfg.BaseURL), nil
	case catalog.ProviderOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOllamaBaseURL
		}
		return NewOpenAIClient("ollama", cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
