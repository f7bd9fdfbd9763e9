package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider names accepted by NewClientForProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewClientForProvider creates an LLM client for the named provider. The
// openai provider works with any OpenAI-compatible endpoint; an empty
// endpoint falls back to the hosted OpenAI API. Returns the LLMClient
// interface to enable dependency injection of mocks.
func NewClientForProvider(provider string, cfg *Config, logger *zap.Logger) (LLMClient, error) {
	switch provider {
	case ProviderAnthropic:
		client, err := NewAnthropicClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	case ProviderOpenAI, "":
		if cfg.Endpoint == "" {
			withDefault := *cfg
			withDefault.Endpoint = "https://api.openai.com/v1"
			cfg = &withDefault
		}
		client, err := NewClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}
