package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/saikrishnan/promptlens/internal/config"
	"github.com/saikrishnan/promptlens/internal/domain"
)

type OpenAIProvider struct {
	apiKey  string
	model   string
	timeout time.Duration
	tmpl    *Template
	client  *openai.Client
	logger  *zap.Logger
}

func NewOpenAIProvider(apiKey, model string, analyzeTimeout time.Duration, tmpl *Template, logger *zap.Logger) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		timeout: analyzeTimeout,
		tmpl:    tmpl,
		client:  openai.NewClient(apiKey),
		logger:  logger,
	}
}

func (p *OpenAIProvider) Name() string {
	return string(config.ProviderOpenAI)
}

// IsAvailable checks that a credential is configured. No network probe: a
// bad key surfaces as a fatal auth error on the first analyze call.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}

func (p *OpenAIProvider) Analyze(ctx context.Context, prompts []string, date string, pctx *domain.ProjectContext) (*domain.AnalysisResult, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.tmpl.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: p.tmpl.UserPrompt(prompts, date, pctx)},
		},
		MaxTokens:   2048,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, p.classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &FatalError{Provider: p.Name(), Err: fmt.Errorf("no choices in response")}
	}

	result, err := p.tmpl.ParseResponse(resp.Choices[0].Message.Content, date, len(prompts))
	if err != nil {
		return nil, &FatalError{Provider: p.Name(), Err: err}
	}

	p.logger.Debug("openai analysis complete",
		zap.Int("prompts", len(prompts)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("latency", time.Since(start)),
	)

	result.Provider = p.Name()
	return result, nil
}

// classify maps go-openai errors onto the transient/fatal taxonomy.
func (p *OpenAIProvider) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode >= 500:
			return &TransientError{Provider: p.Name(), Err: err}
		default:
			return &FatalError{Provider: p.Name(), Err: err}
		}
	}
	// Anything that is not an API error is a transport problem.
	return &TransientError{Provider: p.Name(), Err: err}
}
