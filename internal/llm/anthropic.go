package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/saikrishnan/promptlens/internal/config"
	"github.com/saikrishnan/promptlens/internal/domain"
)

const anthropicAPIURL = "https://api.anthropic.com/v1/messages"

type AnthropicProvider struct {
	apiKey     string
	model      string
	apiURL     string
	tmpl       *Template
	httpClient *http.Client
	logger     *zap.Logger
}

func NewAnthropicProvider(apiKey, model string, analyzeTimeout time.Duration, tmpl *Template, logger *zap.Logger) *AnthropicProvider {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnthropicProvider{
		apiKey:     apiKey,
		model:      model,
		apiURL:     anthropicAPIURL,
		tmpl:       tmpl,
		httpClient: &http.Client{Timeout: analyzeTimeout},
		logger:     logger,
	}
}

func (p *AnthropicProvider) Name() string {
	return string(config.ProviderAnthropic)
}

// IsAvailable checks that a credential is configured. No network probe: a
// bad key surfaces as a fatal auth error on the first analyze call.
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}

func (p *AnthropicProvider) Analyze(ctx context.Context, prompts []string, date string, pctx *domain.ProjectContext) (*domain.AnalysisResult, error) {
	start := time.Now()

	apiReq := anthropicRequest{
		Model:     p.model,
		MaxTokens: 2048,
		System:    p.tmpl.SystemPrompt(),
		Messages: []anthropicMessage{
			{Role: "user", Content: p.tmpl.UserPrompt(prompts, date, pctx)},
		},
		Temperature: 0.1,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, &FatalError{Provider: p.Name(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, &FatalError{Provider: p.Name(), Err: fmt.Errorf("create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransientError{Provider: p.Name(), Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Provider: p.Name(), Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(p.Name(), resp.StatusCode, respBody)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &FatalError{Provider: p.Name(), Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	var content string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	result, err := p.tmpl.ParseResponse(content, date, len(prompts))
	if err != nil {
		return nil, &FatalError{Provider: p.Name(), Err: err}
	}

	p.logger.Debug("anthropic analysis complete",
		zap.Int("prompts", len(prompts)),
		zap.Int("prompt_tokens", apiResp.Usage.InputTokens),
		zap.Int("completion_tokens", apiResp.Usage.OutputTokens),
		zap.Duration("latency", time.Since(start)),
	)

	result.Provider = p.Name()
	return result, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
