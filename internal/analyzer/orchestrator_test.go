package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saikrishnan/promptlens/internal/config"
	"github.com/saikrishnan/promptlens/internal/domain"
	"github.com/saikrishnan/promptlens/internal/llm"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Analysis: config.AnalysisConfig{
			TokenBudgets: map[config.ProviderType]int{
				config.ProviderOllama:    30,
				config.ProviderOpenAI:    1000,
				config.ProviderAnthropic: 1000,
			},
			RequestsPerMin:   map[config.ProviderType]int{},
			MaxRetries:       2,
			RetryBaseDelay:   time.Millisecond,
			RetryMaxDelay:    10 * time.Millisecond,
			ProviderPriority: []config.ProviderType{config.ProviderOllama},
		},
		Cache: config.CacheConfig{
			Dir: t.TempDir(),
			TTL: time.Hour,
		},
	}
}

func healthyAnalyze(prompts []string, date string) (*domain.AnalysisResult, error) {
	return &domain.AnalysisResult{
		Date:     date,
		Provider: "ollama",
		Patterns: []domain.AnalysisPattern{
			{ID: "vague-intent", Name: "Vague intent", Severity: domain.SeverityMedium, Frequency: 0.5, Suggestion: "state the outcome"},
		},
		Stats: domain.AnalysisStats{
			TotalPrompts:      len(prompts),
			PromptsWithIssues: 1,
			OverallScore:      7,
		},
		TopSuggestion: "state the outcome",
	}, nil
}

func newTestOrchestrator(cfg *config.Config, providers map[config.ProviderType]llm.Provider) *Orchestrator {
	factory := func(pt config.ProviderType) (llm.Provider, error) {
		p, ok := providers[pt]
		if !ok {
			return nil, fmt.Errorf("unknown provider type %q", pt)
		}
		return p, nil
	}
	return NewOrchestrator(cfg, llm.NewTemplate(nil), factory, nil)
}

func sevenPrompts() []string {
	prompts := make([]string, 7)
	for i := range prompts {
		prompts[i] = strings.Repeat("x", 40) // 10 estimated tokens each
	}
	return prompts
}

func TestRunAnalysisEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	local := &fakeProvider{name: "ollama", available: true, analyzeFn: healthyAnalyze}
	cloud := &fakeProvider{name: "openai", available: true, analyzeFn: healthyAnalyze}

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: local,
		config.ProviderOpenAI: cloud,
	})

	var progress [][2]int
	result, err := orch.RunAnalysis(context.Background(), sevenPrompts(), "2026-08-28", Options{
		ProviderPriority: []config.ProviderType{config.ProviderOllama, config.ProviderOpenAI},
		OnProgress: func(i, total int) {
			progress = append(progress, [2]int{i, total})
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, local.analyzeCalls, "token budget 30 forces 3 batches")
	assert.Zero(t, cloud.analyzeCalls)
	assert.Equal(t, [][2]int{{0, 3}, {1, 3}, {2, 3}}, progress)
	assert.Len(t, local.analyzeBatches[0], 3)
	assert.Len(t, local.analyzeBatches[1], 3)
	assert.Len(t, local.analyzeBatches[2], 1)
	assert.Equal(t, 7, result.Stats.TotalPrompts)
}

func TestRunAnalysisFallsBackToCloud(t *testing.T) {
	cfg := testConfig(t)
	local := &fakeProvider{name: "ollama", available: false, analyzeFn: healthyAnalyze}
	cloud := &fakeProvider{name: "openai", available: true, analyzeFn: healthyAnalyze}

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: local,
		config.ProviderOpenAI: cloud,
	})

	var fallbacks [][2]string
	result, err := orch.RunAnalysis(context.Background(), sevenPrompts(), "2026-08-28", Options{
		ProviderPriority: []config.ProviderType{config.ProviderOllama, config.ProviderOpenAI},
		OnFallback: func(from, to string) {
			fallbacks = append(fallbacks, [2]string{from, to})
		},
	})

	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"ollama", "openai"}}, fallbacks)
	assert.Zero(t, local.analyzeCalls)
	// The cloud budget fits everything in one batch.
	assert.Equal(t, 1, cloud.analyzeCalls)
	assert.Equal(t, 7, result.Stats.TotalPrompts)
}

func TestRunAnalysisAllProvidersUnavailable(t *testing.T) {
	cfg := testConfig(t)
	local := &fakeProvider{name: "ollama", available: false}

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: local,
	})

	_, err := orch.RunAnalysis(context.Background(), sevenPrompts(), "2026-08-28", Options{})

	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestRunAnalysisNoProvidersConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.ProviderPriority = nil

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{})

	_, err := orch.RunAnalysis(context.Background(), sevenPrompts(), "2026-08-28", Options{})

	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestRunAnalysisCacheHitSkipsProvider(t *testing.T) {
	cfg := testConfig(t)
	first := &fakeProvider{name: "ollama", available: true, analyzeFn: healthyAnalyze}

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: first,
	})
	_, err := orch.RunAnalysis(context.Background(), sevenPrompts(), "2026-08-28", Options{})
	require.NoError(t, err)
	require.Equal(t, 3, first.analyzeCalls)

	// Same cache dir, fresh provider: every batch must come from cache.
	second := &fakeProvider{name: "ollama", available: true, analyzeFn: healthyAnalyze}
	orch = newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: second,
	})
	result, err := orch.RunAnalysis(context.Background(), sevenPrompts(), "2026-08-28", Options{})

	require.NoError(t, err)
	assert.Zero(t, second.analyzeCalls)
	assert.Equal(t, 7, result.Stats.TotalPrompts)
}

func TestRunAnalysisNoCacheOption(t *testing.T) {
	cfg := testConfig(t)
	provider := &fakeProvider{name: "ollama", available: true, analyzeFn: healthyAnalyze}

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: provider,
	})

	for i := 0; i < 2; i++ {
		_, err := orch.RunAnalysis(context.Background(), sevenPrompts(), "2026-08-28", Options{NoCache: true})
		require.NoError(t, err)
	}

	assert.Equal(t, 6, provider.analyzeCalls, "no-cache runs never read or write the cache")
}

func TestRunAnalysisRetriesTransientThenSucceeds(t *testing.T) {
	cfg := testConfig(t)
	failures := 1
	provider := &fakeProvider{name: "ollama", available: true}
	provider.analyzeFn = func(prompts []string, date string) (*domain.AnalysisResult, error) {
		if failures > 0 {
			failures--
			return nil, &llm.TransientError{Provider: "ollama", Err: errors.New("connection reset")}
		}
		return healthyAnalyze(prompts, date)
	}

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: provider,
	})

	result, err := orch.RunAnalysis(context.Background(), sevenPrompts(), "2026-08-28", Options{})

	require.NoError(t, err)
	assert.Equal(t, 4, provider.analyzeCalls, "3 batches plus 1 retried attempt")
	assert.Equal(t, 7, result.Stats.TotalPrompts)
}

func TestRunAnalysisFailsFastOnFatal(t *testing.T) {
	cfg := testConfig(t)
	provider := &fakeProvider{name: "ollama", available: true}
	provider.analyzeFn = func(prompts []string, date string) (*domain.AnalysisResult, error) {
		if provider.analyzeCalls >= 2 {
			return nil, &llm.FatalError{Provider: "ollama", Err: errors.New("api error 401: bad key")}
		}
		return healthyAnalyze(prompts, date)
	}

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: provider,
	})

	_, err := orch.RunAnalysis(context.Background(), sevenPrompts(), "2026-08-28", Options{})

	var fatal *llm.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 2, provider.analyzeCalls, "remaining batches are not started")
}

func TestRunAnalysisCancelledBetweenBatchesReturnsPartial(t *testing.T) {
	cfg := testConfig(t)
	provider := &fakeProvider{name: "ollama", available: true, analyzeFn: healthyAnalyze}

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: provider,
	})

	ctx, cancel := context.WithCancel(context.Background())
	result, err := orch.RunAnalysis(ctx, sevenPrompts(), "2026-08-28", Options{
		OnProgress: func(i, total int) {
			if i == 0 {
				cancel()
			}
		},
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result, "completed batches are not discarded")
	assert.Equal(t, 3, result.Stats.TotalPrompts)
	assert.Equal(t, 1, provider.analyzeCalls)
}

func TestRunAnalysisEmptyPromptList(t *testing.T) {
	cfg := testConfig(t)
	provider := &fakeProvider{name: "ollama", available: true, analyzeFn: healthyAnalyze}

	orch := newTestOrchestrator(cfg, map[config.ProviderType]llm.Provider{
		config.ProviderOllama: provider,
	})

	result, err := orch.RunAnalysis(context.Background(), nil, "2026-08-28", Options{})

	require.NoError(t, err)
	assert.Zero(t, provider.analyzeCalls)
	assert.Equal(t, domain.NoIssuesSuggestion, result.TopSuggestion)
}
