package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/insighter/internal/config"
	"github.com/PabloGalante/insighter/internal/domain"
)

// New builds the chat model selected by cfg.LLM.Provider.
func New(ctx context.Context, cfg *config.Config) (domain.ChatModel, error) {
	c := cfg.LLM
	switch c.Provider {
	case "", "mock":
		return NewMockLLM(), nil
	case "compatible":
		return NewCompatibleClient(c.APIKey, c.BaseURL, c.Model, c.MaxTokens), nil
	case "openai":
		return NewOpenAIClient(c.APIKey, c.BaseURL, c.Model, c.MaxTokens), nil
	case "anthropic":
		return NewAnthropicClient(c.APIKey, c.BaseURL, c.Model, c.MaxTokens), nil
	case "vertex":
		return NewVertexClient(ctx, cfg.GCP.ProjectID, cfg.GCP.Location, c.Model, c.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}
}
