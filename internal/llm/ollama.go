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

type OllamaProvider struct {
	baseURL      string
	model        string
	tmpl         *Template
	availTimeout time.Duration
	httpClient   *http.Client
	availClient  *http.Client
	logger       *zap.Logger
}

func NewOllamaProvider(baseURL, model string, analyzeTimeout, availTimeout time.Duration, tmpl *Template, logger *zap.Logger) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:8b"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaProvider{
		baseURL:      baseURL,
		model:        model,
		tmpl:         tmpl,
		availTimeout: availTimeout,
		httpClient:   &http.Client{Timeout: analyzeTimeout},
		availClient:  &http.Client{Timeout: availTimeout},
		logger:       logger,
	}
}

func (p *OllamaProvider) Name() string {
	return string(config.ProviderOllama)
}

// IsAvailable probes the tags endpoint under the short availability timeout.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.availTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := p.availClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (p *OllamaProvider) Analyze(ctx context.Context, prompts []string, date string, pctx *domain.ProjectContext) (*domain.AnalysisResult, error) {
	start := time.Now()

	apiReq := ollamaRequest{
		Model: p.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: p.tmpl.SystemPrompt()},
			{Role: "user", Content: p.tmpl.UserPrompt(prompts, date, pctx)},
		},
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			Temperature: 0.1,
		},
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, &FatalError{Provider: p.Name(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &FatalError{Provider: p.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var apiResp ollamaResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &FatalError{Provider: p.Name(), Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	result, err := p.tmpl.ParseResponse(apiResp.Message.Content, date, len(prompts))
	if err != nil {
		return nil, &FatalError{Provider: p.Name(), Err: err}
	}

	usage := apiResp.usage()
	p.logger.Debug("ollama analysis complete",
		zap.Int("prompts", len(prompts)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Duration("latency", time.Since(start)),
	)

	result.Provider = p.Name()
	return result, nil
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func (r *ollamaResponse) usage() Usage {
	return Usage{
		PromptTokens:     r.PromptEvalCount,
		CompletionTokens: r.EvalCount,
		TotalTokens:      r.PromptEvalCount + r.EvalCount,
	}
}
