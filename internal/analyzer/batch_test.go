package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanBatchesPartitionsInput(t *testing.T) {
	prompts := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
		strings.Repeat("d", 40),
		strings.Repeat("e", 40),
	}

	batches := PlanBatches(prompts, 20)

	require.NotEmpty(t, batches)

	var rejoined []string
	for i, b := range batches {
		require.NotEmpty(t, b.Prompts, "batch %d is empty", i)
		assert.Equal(t, i, b.Index)
		assert.Equal(t, len(batches), b.Total)
		rejoined = append(rejoined, b.Prompts...)
	}

	assert.Equal(t, prompts, rejoined, "concatenated batches must reproduce the input")
}

func TestPlanBatchesGreedyPacking(t *testing.T) {
	// 10 tokens each against a 30 token budget: 3 + 3 + 1.
	prompts := make([]string, 7)
	for i := range prompts {
		prompts[i] = strings.Repeat("x", 40)
	}

	batches := PlanBatches(prompts, 30)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Prompts, 3)
	assert.Len(t, batches[1].Prompts, 3)
	assert.Len(t, batches[2].Prompts, 1)
}

func TestPlanBatchesOversizedPromptGetsOwnBatch(t *testing.T) {
	huge := strings.Repeat("z", 4000)
	prompts := []string{"short one", huge, "short two"}

	batches := PlanBatches(prompts, 50)

	require.Len(t, batches, 3)
	assert.Equal(t, []string{huge}, batches[1].Prompts, "oversized prompt is never dropped or truncated")
}

func TestPlanBatchesEmptyInput(t *testing.T) {
	assert.Nil(t, PlanBatches(nil, 100))
}

func TestPlanBatchesSingleBatch(t *testing.T) {
	batches := PlanBatches([]string{"a", "b"}, 1000)

	require.Len(t, batches, 1)
	assert.Equal(t, []string{"a", "b"}, batches[0].Prompts)
	assert.Equal(t, 1, batches[0].Total)
}
