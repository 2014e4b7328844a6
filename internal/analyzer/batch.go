package analyzer

// avgCharsPerToken is the cheap token estimation heuristic shared with the
// providers: ~4 characters per token.
const avgCharsPerToken = 4

// Batch is an ordered, non-empty slice of the original prompt list.
type Batch struct {
	Prompts []string
	Index   int
	Total   int
}

// EstimateTokens provides a rough estimate of tokens in text.
func EstimateTokens(text string) int {
	return len(text) / avgCharsPerToken
}

// PlanBatches greedily packs prompts into token-budget-bounded batches.
// Ordering is preserved and the batches partition the input exactly. A
// single prompt larger than the budget still gets its own batch; it is
// never dropped or truncated.
func PlanBatches(prompts []string, tokenBudget int) []Batch {
	if len(prompts) == 0 {
		return nil
	}

	var groups [][]string
	var current []string
	currentTokens := 0

	for _, p := range prompts {
		cost := EstimateTokens(p)
		if len(current) > 0 && currentTokens+cost > tokenBudget {
			groups = append(groups, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, p)
		currentTokens += cost
	}
	groups = append(groups, current)

	batches := make([]Batch, len(groups))
	for i, g := range groups {
		batches[i] = Batch{Prompts: g, Index: i, Total: len(groups)}
	}

	return batches
}
