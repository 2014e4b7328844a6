// Package rules loads the analysis rule configuration that steers what the
// remote provider is asked to look for. The active rule set is part of the
// cache key, so toggling a rule never serves a stale judgment.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Rule struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`
}

type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRuleSet is used when no rules file is configured.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Rules: []Rule{
			{ID: "vague-intent", Description: "Prompt does not state what outcome is wanted", Enabled: true},
			{ID: "missing-context", Description: "Prompt omits files, errors, or constraints the task depends on", Enabled: true},
			{ID: "overloaded-ask", Description: "Prompt bundles several unrelated requests into one", Enabled: true},
			{ID: "no-success-criteria", Description: "Prompt gives no way to tell when the task is done", Enabled: true},
			{ID: "assumed-knowledge", Description: "Prompt references things never introduced in the session", Enabled: true},
		},
	}
}

// Load reads a YAML rule file. An empty path returns the default rule set;
// a missing file is an error so typos in config surface immediately.
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRuleSet(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s defines no rules", path)
	}

	return &rs, nil
}

// Enabled returns the enabled rules in a stable order.
func (rs *RuleSet) Enabled() []Rule {
	var out []Rule
	for _, r := range rs.Rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Hash returns a deterministic digest of the enabled rules, independent of
// declaration order in the file.
func (rs *RuleSet) Hash() string {
	var sb strings.Builder
	for _, r := range rs.Enabled() {
		sb.WriteString(r.ID)
		sb.WriteString("\x00")
		sb.WriteString(r.Description)
		sb.WriteString("\n")
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
