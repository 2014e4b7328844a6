package analyzer

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/saikrishnan/promptlens/internal/domain"
)

// patternGroup accumulates one pattern id across batch results.
type patternGroup struct {
	first          domain.AnalysisPattern
	weightedFreq   float64
	examples       []string
	severityCounts map[domain.Severity]int
	order          int
}

// MergeResults folds per-batch results into one report. Each batch is
// weighted by its prompt count, so a pattern reported at 0.6 by a 2-prompt
// batch and 0.2 by a 3-prompt batch merges to (0.6*2+0.2*3)/5. Batches that
// did not report a pattern contribute zero to its frequency, not "unknown".
// The merge is deterministic: identical inputs produce identical output.
func MergeResults(results []*domain.AnalysisResult) *domain.AnalysisResult {
	if len(results) == 1 {
		return results[0]
	}

	totalPrompts := 0
	for _, r := range results {
		totalPrompts += r.Stats.TotalPrompts
	}

	groups := make(map[string]*patternGroup)
	order := 0

	for _, r := range results {
		weight := float64(r.Stats.TotalPrompts)
		for _, p := range r.Patterns {
			g, ok := groups[p.ID]
			if !ok {
				g = &patternGroup{
					first:          p,
					severityCounts: make(map[domain.Severity]int),
					order:          order,
				}
				order++
				groups[p.ID] = g
			}
			g.weightedFreq += p.Frequency * weight
			g.severityCounts[p.Severity]++
			for _, ex := range p.Examples {
				if len(g.examples) < domain.MaxExamples {
					g.examples = append(g.examples, ex)
				}
			}
		}
	}

	merged := make([]domain.AnalysisPattern, 0, len(groups))
	for _, g := range groups {
		p := g.first
		if totalPrompts > 0 {
			p.Frequency = g.weightedFreq / float64(totalPrompts)
		}
		p.Examples = g.examples
		p.Severity = dominantSeverity(g.severityCounts)
		merged = append(merged, p)
	}

	// Stable starting order so the sort below is deterministic.
	sort.Slice(merged, func(i, j int) bool {
		return groups[merged[i].ID].order < groups[merged[j].ID].order
	})
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Severity.Rank() != merged[j].Severity.Rank() {
			return merged[i].Severity.Rank() > merged[j].Severity.Rank()
		}
		return merged[i].Frequency > merged[j].Frequency
	})

	if len(merged) > domain.MaxPatterns {
		merged = merged[:domain.MaxPatterns]
	}

	stats := domain.AnalysisStats{TotalPrompts: totalPrompts}
	var weightedScore float64
	for _, r := range results {
		stats.PromptsWithIssues += r.Stats.PromptsWithIssues
		weightedScore += r.Stats.OverallScore * float64(r.Stats.TotalPrompts)
	}
	if totalPrompts > 0 {
		stats.OverallScore = weightedScore / float64(totalPrompts)
	}

	topSuggestion := domain.NoIssuesSuggestion
	if len(merged) > 0 {
		topSuggestion = merged[0].Suggestion
	}

	return &domain.AnalysisResult{
		ID:            uuid.New().String(),
		Date:          results[0].Date,
		Provider:      results[0].Provider,
		Patterns:      merged,
		Stats:         stats,
		TopSuggestion: topSuggestion,
		GeneratedAt:   time.Now(),
	}
}

// dominantSeverity picks the most frequently reported severity for a
// pattern id, breaking ties toward the higher severity.
func dominantSeverity(counts map[domain.Severity]int) domain.Severity {
	best := domain.SeverityLow
	bestCount := -1
	for _, s := range []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh} {
		if c := counts[s]; c > bestCount || (c == bestCount && s.Rank() > best.Rank()) {
			best = s
			bestCount = c
		}
	}
	return best
}
