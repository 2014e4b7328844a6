package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/saikrishnan/promptlens/internal/config"
	"github.com/saikrishnan/promptlens/internal/domain"
	"github.com/saikrishnan/promptlens/internal/rules"
)

// Provider is the capability contract every analysis backend implements.
//
// IsAvailable fails closed: any transport problem means "not available",
// it never returns an error. Analyze fails open: it returns a typed
// *TransientError or *FatalError on any failure and never a partial result.
type Provider interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Analyze(ctx context.Context, prompts []string, date string, pctx *domain.ProjectContext) (*domain.AnalysisResult, error)
}

// Usage reports token consumption for a single raw completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// New constructs the provider for the given identity. Configuration is read
// once here and never mutated afterwards.
func New(pt config.ProviderType, cfg *config.Config, ruleSet *rules.RuleSet, logger *zap.Logger) (Provider, error) {
	tmpl := NewTemplate(ruleSet)

	switch pt {
	case config.ProviderOllama:
		return NewOllamaProvider(cfg.LLM.OllamaBaseURL, cfg.LLM.OllamaModel, cfg.LLM.AnalyzeTimeout, cfg.LLM.AvailabilityTimeout, tmpl, logger), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIModel, cfg.LLM.AnalyzeTimeout, tmpl, logger), nil
	case config.ProviderAnthropic:
		return NewAnthropicProvider(cfg.LLM.AnthropicAPIKey, cfg.LLM.AnthropicModel, cfg.LLM.AnalyzeTimeout, tmpl, logger), nil
	}

	return nil, fmt.Errorf("unknown provider type %q", pt)
}
