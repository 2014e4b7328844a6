package domain

import (
	"time"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for sorting and tie-breaking; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// MaxPatterns caps the number of patterns in a single result.
const MaxPatterns = 5

// MaxExamples caps verbatim prompt excerpts carried per pattern.
const MaxExamples = 3

// NoIssuesSuggestion is the top suggestion when no patterns were found.
const NoIssuesSuggestion = "No recurring issues found. Keep prompting the way you do."

type BeforeAfter struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

type AnalysisPattern struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Severity    Severity    `json:"severity"`
	Frequency   float64     `json:"frequency"`
	Examples    []string    `json:"examples"`
	Suggestion  string      `json:"suggestion"`
	BeforeAfter BeforeAfter `json:"before_after"`
}

type AnalysisStats struct {
	TotalPrompts      int     `json:"total_prompts"`
	PromptsWithIssues int     `json:"prompts_with_issues"`
	OverallScore      float64 `json:"overall_score"`
}

type AnalysisResult struct {
	ID            string            `json:"id"`
	Date          string            `json:"date"`
	Provider      string            `json:"provider,omitempty"`
	Patterns      []AnalysisPattern `json:"patterns"`
	Stats         AnalysisStats     `json:"stats"`
	TopSuggestion string            `json:"top_suggestion"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// ProjectContext is optional background handed to the analysis provider so
// suggestions can reference what the user is actually building.
type ProjectContext struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	TechStack   []string `json:"tech_stack,omitempty"`
}
