package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicTestProvider(url string) *AnthropicProvider {
	p := NewAnthropicProvider("test-key", "", 5*time.Second, NewTemplate(nil), nil)
	p.apiURL = url
	return p
}

func TestAnthropicIsAvailableNeedsKey(t *testing.T) {
	withKey := NewAnthropicProvider("key", "", time.Second, NewTemplate(nil), nil)
	assert.True(t, withKey.IsAvailable(context.Background()))

	noKey := NewAnthropicProvider("", "", time.Second, NewTemplate(nil), nil)
	assert.False(t, noKey.IsAvailable(context.Background()))
}

func TestAnthropicAnalyzeWireFormat(t *testing.T) {
	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []contentBlock{
				{Type: "text", Text: `{"patterns": [], "stats": {"total_prompts": 1, "overall_score": 9}}`},
			},
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 50, OutputTokens: 30},
		})
	}))
	defer srv.Close()

	p := newAnthropicTestProvider(srv.URL)
	result, err := p.Analyze(context.Background(), []string{"ship it"}, "2026-08-28", nil)

	require.NoError(t, err)
	assert.NotEmpty(t, captured.System, "system prompt travels in the dedicated field")
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "claude-sonnet-4-20250514", captured.Model)

	assert.Equal(t, "anthropic", result.Provider)
	assert.Equal(t, 1, result.Stats.TotalPrompts)
}

func TestAnthropicAnalyzeRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type": "rate_limit_error"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newAnthropicTestProvider(srv.URL)
	_, err := p.Analyze(context.Background(), []string{"x"}, "2026-08-28", nil)

	var transient *TransientError
	require.ErrorAs(t, err, &transient)
}

func TestAnthropicAnalyzeAuthFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type": "authentication_error"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newAnthropicTestProvider(srv.URL)
	_, err := p.Analyze(context.Background(), []string{"x"}, "2026-08-28", nil)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "anthropic", fatal.Provider)
}

func TestAnthropicAnalyzeConcatenatesTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []contentBlock{
				{Type: "text", Text: `{"patterns": [],`},
				{Type: "text", Text: ` "stats": {"total_prompts": 2, "overall_score": 8}}`},
			},
		})
	}))
	defer srv.Close()

	p := newAnthropicTestProvider(srv.URL)
	result, err := p.Analyze(context.Background(), []string{"a", "b"}, "2026-08-28", nil)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.TotalPrompts)
}
