package analyzer

import (
	"context"

	"github.com/saikrishnan/promptlens/internal/config"
	"github.com/saikrishnan/promptlens/internal/llm"
)

// FallbackFunc is invoked once per skipped provider, before the next
// candidate is checked, so callers can surface "X unavailable, trying Y".
type FallbackFunc func(from, to string)

// SelectProvider walks the ordered candidate list and returns the first one
// reporting available. Availability checks run under the provider's own
// short timeout and never hang selection. Selection is re-run on every
// orchestration: availability changes between runs (a local server may be
// started or stopped) so there is no "last good provider" cache.
func SelectProvider(ctx context.Context, providers []llm.Provider, onFallback FallbackFunc) (llm.Provider, error) {
	tried := make([]config.ProviderType, 0, len(providers))

	for i, p := range providers {
		if p.IsAvailable(ctx) {
			return p, nil
		}
		tried = append(tried, config.ProviderType(p.Name()))
		if onFallback != nil && i+1 < len(providers) {
			onFallback(p.Name(), providers[i+1].Name())
		}
	}

	return nil, &ProviderUnavailableError{Tried: tried}
}
