package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
)

// openRouterBaseURL is the default endpoint for the openrouter provider.
const openRouterBaseURL = "https://openrouter.ai/api/v1"

// NewClient creates a ToolLoopClient for the configured provider. The model
// is chosen per request, so one client serves both agents.
func NewClient(cfg *config.LLMConfig, logger *zap.Logger) (ToolLoopClient, error) {
	switch cfg.Provider {
	case "openrouter":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = openRouterBaseURL
		}
		return NewOpenAIClient(baseURL, cfg.APIKey, logger), nil
	case "anthropic":
		return NewAnthropicClient(cfg.BaseURL, cfg.APIKey, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
