package llm

import "context"

// LLMClient is the interface for LLM providers used by the extraction
// pipeline. Implementations exist for OpenAI-compatible endpoints and
// Anthropic, plus a configurable mock for tests.
type LLMClient interface {
	// GenerateResponse produces a single chat completion for the given
	// prompt and system message, returning the content and token usage.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint URL.
	GetEndpoint() string
}

// GenerateResponseResult contains the response content and usage stats
// from a completion call.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Compile-time interface checks.
var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
)
