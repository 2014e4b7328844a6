package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProviderType identifies one of the configured analysis backends.
type ProviderType string

const (
	ProviderOllama    ProviderType = "ollama"
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
)

// ParseProviderType validates a provider name from config or CLI input.
func ParseProviderType(s string) (ProviderType, error) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOllama:
		return ProviderOllama, nil
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Config holds all configuration for the application.
type Config struct {
	LLM      LLMConfig
	Analysis AnalysisConfig
	Cache    CacheConfig
}

// LLMConfig holds provider credentials, endpoints and timeouts.
type LLMConfig struct {
	OpenAIAPIKey        string
	OpenAIModel         string
	AnthropicAPIKey     string
	AnthropicModel      string
	OllamaBaseURL       string
	OllamaModel         string
	AnalyzeTimeout      time.Duration
	AvailabilityTimeout time.Duration
}

// AnalysisConfig holds orchestration tuning: batching, rate limits, retry
// policy and the provider priority order.
type AnalysisConfig struct {
	TokenBudgets     map[ProviderType]int
	RequestsPerMin   map[ProviderType]int
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	ProviderPriority []ProviderType
	RulesFile        string
}

// CacheConfig holds the on-disk result cache settings.
type CacheConfig struct {
	Dir      string
	TTL      time.Duration
	Disabled bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	priority, err := parsePriority(getEnv("PROVIDER_PRIORITY", "ollama,openai,anthropic"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LLM: LLMConfig{
			OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:      getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:         getEnv("OLLAMA_MODEL", "llama3.1:8b"),
			AnalyzeTimeout:      getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			AvailabilityTimeout: getEnvAsDuration("LLM_AVAILABILITY_TIMEOUT", 2*time.Second),
		},
		Analysis: AnalysisConfig{
			TokenBudgets: map[ProviderType]int{
				ProviderOllama:    getEnvAsInt("OLLAMA_TOKEN_BUDGET", 8000),
				ProviderOpenAI:    getEnvAsInt("OPENAI_TOKEN_BUDGET", 60000),
				ProviderAnthropic: getEnvAsInt("ANTHROPIC_TOKEN_BUDGET", 100000),
			},
			RequestsPerMin: map[ProviderType]int{
				ProviderOpenAI:    getEnvAsInt("OPENAI_RPM", 20),
				ProviderAnthropic: getEnvAsInt("ANTHROPIC_RPM", 10),
			},
			MaxRetries:       getEnvAsInt("ANALYSIS_MAX_RETRIES", 3),
			RetryBaseDelay:   getEnvAsDuration("ANALYSIS_RETRY_BASE_DELAY", time.Second),
			RetryMaxDelay:    getEnvAsDuration("ANALYSIS_RETRY_MAX_DELAY", 30*time.Second),
			ProviderPriority: priority,
			RulesFile:        getEnv("ANALYSIS_RULES_FILE", ""),
		},
		Cache: CacheConfig{
			Dir:      getEnv("CACHE_DIR", defaultCacheDir()),
			TTL:      getEnvAsDuration("CACHE_TTL", 7*24*time.Hour),
			Disabled: getEnvAsBool("CACHE_DISABLED", false),
		},
	}

	return cfg, nil
}

func parsePriority(raw string) ([]ProviderType, error) {
	parts := strings.Split(raw, ",")
	seen := make(map[ProviderType]bool)
	var priority []ProviderType

	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		pt, err := ParseProviderType(part)
		if err != nil {
			return nil, fmt.Errorf("PROVIDER_PRIORITY: %w", err)
		}
		if seen[pt] {
			continue
		}
		seen[pt] = true
		priority = append(priority, pt)
	}

	if len(priority) == 0 {
		return nil, fmt.Errorf("PROVIDER_PRIORITY is empty")
	}

	return priority, nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "promptlens-cache")
	}
	return filepath.Join(home, ".promptlens", "cache")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
