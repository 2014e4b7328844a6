package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saikrishnan/promptlens/internal/domain"
	"github.com/saikrishnan/promptlens/internal/rules"
)

const analysisSystemPrompt = "You are an expert at reviewing how developers prompt AI coding assistants. " +
	"You identify recurring weaknesses across a day of prompts and suggest concrete rewrites. " +
	"Always respond with valid JSON."

const analysisInstructions = `
Identify up to 5 recurring patterns across these prompts. For each pattern report:
- a stable short id (kebab-case)
- a human-readable name
- severity: "low", "medium" or "high"
- frequency: fraction of the prompts above that exhibit it (0-1)
- up to 3 verbatim example excerpts from the prompts
- a specific, actionable suggestion
- a before/after rewrite pair showing the fix

Also report stats: total_prompts, prompts_with_issues, and overall_score (0-10,
10 = excellent prompting).

Respond with JSON:
{
  "patterns": [{"id": "...", "name": "...", "severity": "low|medium|high", "frequency": <float>, "examples": ["..."], "suggestion": "...", "before_after": {"before": "...", "after": "..."}}],
  "stats": {"total_prompts": <int>, "prompts_with_issues": <int>, "overall_score": <float>},
  "top_suggestion": "..."
}`

// Template renders the analysis instructions shared by all providers and
// parses their JSON responses back into domain values. Its Version digest
// changes whenever the instruction text or the active rule set changes,
// which is what invalidates the result cache wholesale.
type Template struct {
	ruleSet *rules.RuleSet
}

func NewTemplate(ruleSet *rules.RuleSet) *Template {
	if ruleSet == nil {
		ruleSet = rules.DefaultRuleSet()
	}
	return &Template{ruleSet: ruleSet}
}

// Version is the instruction-template version hash.
func (t *Template) Version() string {
	h := sha256.New()
	h.Write([]byte(analysisSystemPrompt))
	h.Write([]byte(analysisInstructions))
	h.Write([]byte(t.ruleSet.Hash()))
	return hex.EncodeToString(h.Sum(nil))
}

// RulesHash exposes the active rule configuration digest for cache keying.
func (t *Template) RulesHash() string {
	return t.ruleSet.Hash()
}

func (t *Template) SystemPrompt() string {
	return analysisSystemPrompt
}

// UserPrompt assembles the per-call analysis request.
func (t *Template) UserPrompt(prompts []string, date string, pctx *domain.ProjectContext) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Analyze the prompts this developer wrote to an AI coding assistant on %s.\n\n", date))

	if pctx != nil {
		if pctx.Name != "" {
			sb.WriteString(fmt.Sprintf("Project: %s\n", pctx.Name))
		}
		if pctx.Description != "" {
			sb.WriteString(fmt.Sprintf("Description: %s\n", pctx.Description))
		}
		if len(pctx.TechStack) > 0 {
			sb.WriteString(fmt.Sprintf("Tech stack: %s\n", strings.Join(pctx.TechStack, ", ")))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Look specifically for these issues:\n")
	for _, r := range t.ruleSet.Enabled() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", r.ID, r.Description))
	}

	sb.WriteString("\nPrompts:\n")
	for i, p := range prompts {
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, p))
	}

	sb.WriteString(analysisInstructions)

	return sb.String()
}

type analysisResponse struct {
	Patterns      []domain.AnalysisPattern `json:"patterns"`
	Stats         domain.AnalysisStats     `json:"stats"`
	TopSuggestion string                   `json:"top_suggestion"`
}

// ParseResponse decodes and validates a provider response. A response that
// does not decode or fails validation is a schema mismatch; callers wrap the
// error as fatal since retrying the same instructions cannot change it.
func (t *Template) ParseResponse(content, date string, totalPrompts int) (*domain.AnalysisResult, error) {
	var resp analysisResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(resp.Patterns) > domain.MaxPatterns {
		resp.Patterns = resp.Patterns[:domain.MaxPatterns]
	}

	for i := range resp.Patterns {
		p := &resp.Patterns[i]
		if p.ID == "" {
			return nil, fmt.Errorf("pattern %d has no id", i)
		}
		switch p.Severity {
		case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh:
		default:
			return nil, fmt.Errorf("pattern %s has invalid severity %q", p.ID, p.Severity)
		}
		if p.Frequency < 0 {
			p.Frequency = 0
		}
		if p.Frequency > 1 {
			p.Frequency = 1
		}
		if len(p.Examples) > domain.MaxExamples {
			p.Examples = p.Examples[:domain.MaxExamples]
		}
	}

	if resp.Stats.TotalPrompts == 0 {
		resp.Stats.TotalPrompts = totalPrompts
	}
	if resp.Stats.OverallScore < 0 {
		resp.Stats.OverallScore = 0
	}
	if resp.Stats.OverallScore > 10 {
		resp.Stats.OverallScore = 10
	}

	if resp.TopSuggestion == "" {
		if len(resp.Patterns) > 0 {
			resp.TopSuggestion = resp.Patterns[0].Suggestion
		} else {
			resp.TopSuggestion = domain.NoIssuesSuggestion
		}
	}

	return &domain.AnalysisResult{
		ID:            uuid.New().String(),
		Date:          date,
		Patterns:      resp.Patterns,
		Stats:         resp.Stats,
		TopSuggestion: resp.TopSuggestion,
		GeneratedAt:   time.Now(),
	}, nil
}
