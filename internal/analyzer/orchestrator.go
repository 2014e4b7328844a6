package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saikrishnan/promptlens/internal/cache"
	"github.com/saikrishnan/promptlens/internal/config"
	"github.com/saikrishnan/promptlens/internal/domain"
	"github.com/saikrishnan/promptlens/internal/llm"
	"github.com/saikrishnan/promptlens/internal/rules"
)

// ProviderFactory builds the capability for one identity. Injected so tests
// can substitute fake providers.
type ProviderFactory func(config.ProviderType) (llm.Provider, error)

// Options tune a single orchestration run.
type Options struct {
	// ProviderPriority overrides the configured priority order.
	ProviderPriority []config.ProviderType
	// OnFallback is called for every skipped provider during selection.
	OnFallback FallbackFunc
	// OnProgress is called after each completed batch with its 0-based
	// index and the total batch count.
	OnProgress func(batchIndex, totalBatches int)
	// NoCache bypasses the result cache for this run.
	NoCache bool
	// ProjectContext is optional background forwarded to the provider.
	ProjectContext *domain.ProjectContext
}

// Orchestrator plans batches, resolves a provider, and folds per-batch
// judgments into one report. Batches run sequentially in index order: that
// keeps the rate limiter's spacing guarantee without cross-batch
// coordination, makes the merge order reproducible, and keeps progress
// reporting linear.
type Orchestrator struct {
	cfg      *config.Config
	tmpl     *llm.Template
	factory  ProviderFactory
	cache    *cache.Cache
	limiters map[config.ProviderType]*RateLimiter
	logger   *zap.Logger
}

// New wires an orchestrator from configuration, loading the rule set from
// the configured rules file.
func New(cfg *config.Config, logger *zap.Logger) (*Orchestrator, error) {
	ruleSet, err := rules.Load(cfg.Analysis.RulesFile)
	if err != nil {
		return nil, err
	}

	factory := func(pt config.ProviderType) (llm.Provider, error) {
		return llm.New(pt, cfg, ruleSet, logger)
	}

	return NewOrchestrator(cfg, llm.NewTemplate(ruleSet), factory, logger), nil
}

// NewOrchestrator wires an orchestrator from explicit collaborators.
func NewOrchestrator(cfg *config.Config, tmpl *llm.Template, factory ProviderFactory, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		cfg:      cfg,
		tmpl:     tmpl,
		factory:  factory,
		limiters: make(map[config.ProviderType]*RateLimiter),
		logger:   logger,
	}

	if !cfg.Cache.Disabled {
		o.cache = cache.New(cfg.Cache.Dir, cfg.Cache.TTL, logger)
	}

	// Only providers with an external requests-per-minute budget are
	// throttled; the local provider is not.
	for pt, rpm := range cfg.Analysis.RequestsPerMin {
		if rpm > 0 {
			o.limiters[pt] = NewRateLimiter(rpm)
		}
	}

	return o
}

// RunAnalysis analyzes prompts for one date and returns the merged report.
//
// Cancellation is checked between batches, never mid-batch: once the
// context is done, no further batches start and the partial merged result
// for the completed batches is returned together with the context error.
// Fatal provider errors and exhausted retries abort the run.
func (o *Orchestrator) RunAnalysis(ctx context.Context, prompts []string, date string, opts Options) (*domain.AnalysisResult, error) {
	if len(prompts) == 0 {
		return emptyResult(date), nil
	}

	priority := opts.ProviderPriority
	if len(priority) == 0 {
		priority = o.cfg.Analysis.ProviderPriority
	}
	if len(priority) == 0 {
		return nil, &ConfigurationError{Reason: "no providers configured"}
	}

	providers := make([]llm.Provider, 0, len(priority))
	for _, pt := range priority {
		p, err := o.factory(pt)
		if err != nil {
			return nil, &ConfigurationError{Reason: err.Error()}
		}
		providers = append(providers, p)
	}

	provider, err := SelectProvider(ctx, providers, opts.OnFallback)
	if err != nil {
		return nil, err
	}

	identity := config.ProviderType(provider.Name())
	budget := o.cfg.Analysis.TokenBudgets[identity]
	if budget <= 0 {
		budget = 8000
	}

	batches := PlanBatches(prompts, budget)
	o.logger.Info("starting analysis",
		zap.String("provider", provider.Name()),
		zap.String("date", date),
		zap.Int("prompts", len(prompts)),
		zap.Int("batches", len(batches)),
	)

	useCache := o.cache != nil && !opts.NoCache
	if useCache {
		o.cache.EnsureTemplate(o.tmpl.Version())
	}

	policy := DefaultRetryPolicy(
		o.cfg.Analysis.MaxRetries,
		o.cfg.Analysis.RetryBaseDelay,
		o.cfg.Analysis.RetryMaxDelay,
	)
	limiter := o.limiters[identity]

	results := make([]*domain.AnalysisResult, 0, len(batches))

	for _, batch := range batches {
		if ctx.Err() != nil {
			// A cancelled multi-batch run still yields usable output.
			if len(results) > 0 {
				return MergeResults(results), ctx.Err()
			}
			return nil, ctx.Err()
		}

		result, err := o.runBatch(ctx, provider, limiter, policy, batch, date, opts, useCache)
		if err != nil {
			return nil, err
		}

		// The provider's own count is advisory; the batch size is
		// authoritative and drives the merge weighting.
		result.Stats.TotalPrompts = len(batch.Prompts)
		results = append(results, result)

		if opts.OnProgress != nil {
			opts.OnProgress(batch.Index, batch.Total)
		}
	}

	return MergeResults(results), nil
}

func (o *Orchestrator) runBatch(
	ctx context.Context,
	provider llm.Provider,
	limiter *RateLimiter,
	policy RetryPolicy,
	batch Batch,
	date string,
	opts Options,
	useCache bool,
) (*domain.AnalysisResult, error) {
	var key string
	if useCache {
		key = cache.Key(cache.KeyParams{
			Prompts:         batch.Prompts,
			Provider:        provider.Name(),
			Date:            date,
			RulesHash:       o.tmpl.RulesHash(),
			TemplateVersion: o.tmpl.Version(),
		})
		if cached := o.cache.Get(key); cached != nil {
			o.logger.Debug("cache hit", zap.Int("batch", batch.Index))
			return cached, nil
		}
	}

	op := func() (*domain.AnalysisResult, error) {
		var result *domain.AnalysisResult
		call := func() error {
			var err error
			result, err = provider.Analyze(ctx, batch.Prompts, date, opts.ProjectContext)
			return err
		}
		if limiter != nil {
			if err := limiter.Throttle(ctx, call); err != nil {
				return nil, err
			}
			return result, nil
		}
		if err := call(); err != nil {
			return nil, err
		}
		return result, nil
	}

	result, err := WithRetry(ctx, policy, op)
	if err != nil {
		return nil, err
	}

	if useCache {
		o.cache.Set(key, result)
	}

	return result, nil
}

func emptyResult(date string) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		ID:            uuid.New().String(),
		Date:          date,
		Patterns:      nil,
		Stats:         domain.AnalysisStats{},
		TopSuggestion: domain.NoIssuesSuggestion,
		GeneratedAt:   time.Now(),
	}
}
