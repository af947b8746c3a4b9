package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/tutorflow/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedCompleter(response string) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return response, nil
	})
}

func failingCompleter() llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model unavailable")
	})
}

func TestGenerateVariants_OriginalAlwaysFirst(t *testing.T) {
	t.Parallel()

	tr := NewQueryTransformer(DefaultQueryTransformConfig(),
		fixedCompleter("1. BST definition\n2. binary search tree properties"), nil)

	for _, n := range []int{1, 2, 3, 5} {
		variants := tr.GenerateVariants(context.Background(), "What is a binary search tree?", n)
		require.NotEmpty(t, variants)
		assert.Equal(t, "What is a binary search tree?", variants[0], "n=%d", n)
		assert.LessOrEqual(t, len(variants), n)
	}
}

func TestGenerateVariants_StripsListNumbering(t *testing.T) {
	t.Parallel()

	tr := NewQueryTransformer(DefaultQueryTransformConfig(),
		fixedCompleter("1. first variant\n2) second variant\n\nthird variant"), nil)

	variants := tr.GenerateVariants(context.Background(), "original", 4)
	assert.Equal(t, []string{"original", "first variant", "second variant", "third variant"}, variants)
}

func TestGenerateVariants_ModelFailureFallsBackToOriginal(t *testing.T) {
	t.Parallel()

	tr := NewQueryTransformer(DefaultQueryTransformConfig(), failingCompleter(), nil)

	variants := tr.GenerateVariants(context.Background(), "original question", 3)
	assert.Equal(t, []string{"original question"}, variants)
}

func TestGenerateVariants_DropsDuplicateOfOriginal(t *testing.T) {
	t.Parallel()

	tr := NewQueryTransformer(DefaultQueryTransformConfig(),
		fixedCompleter("original\nalternative"), nil)

	variants := tr.GenerateVariants(context.Background(), "original", 3)
	assert.Equal(t, []string{"original", "alternative"}, variants)
}

func TestContextualize_EmptyHistoryPassesThrough(t *testing.T) {
	t.Parallel()

	tr := NewQueryTransformer(DefaultQueryTransformConfig(),
		fixedCompleter("should never be used"), nil)

	got := tr.Contextualize(context.Background(), "can you give an example?", nil)
	assert.Equal(t, "can you give an example?", got)
}

func TestContextualize_RewritesFollowUp(t *testing.T) {
	t.Parallel()

	// Scenario C: 三轮关于 recursion 的历史 + 追问
	history := []Turn{
		{Role: "user", Content: "What is recursion?"},
		{Role: "assistant", Content: "Recursion is a function calling itself with smaller inputs."},
		{Role: "user", Content: "Is it efficient?"},
	}
	tr := NewQueryTransformer(DefaultQueryTransformConfig(),
		fixedCompleter("Can you give an example of recursion?\n"), nil)

	got := tr.Contextualize(context.Background(), "can you give an example?", history)
	assert.Contains(t, got, "recursion")
}

func TestContextualize_ModelFailurePassesThrough(t *testing.T) {
	t.Parallel()

	history := []Turn{{Role: "user", Content: "What is recursion?"}}
	tr := NewQueryTransformer(DefaultQueryTransformConfig(), failingCompleter(), nil)

	got := tr.Contextualize(context.Background(), "can you give an example?", history)
	assert.Equal(t, "can you give an example?", got)
}

func TestContextualize_UsesOnlyRecentTurns(t *testing.T) {
	t.Parallel()

	var captured string
	tr := NewQueryTransformer(DefaultQueryTransformConfig(),
		llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
			captured = prompt
			return "rewritten", nil
		}), nil)

	history := []Turn{
		{Role: "user", Content: "ancient turn"},
		{Role: "user", Content: "turn two"},
		{Role: "user", Content: "turn three"},
		{Role: "user", Content: "turn four"},
	}
	_ = tr.Contextualize(context.Background(), "follow-up", history)

	assert.NotContains(t, captured, "ancient turn")
	assert.Contains(t, captured, "turn two")
	assert.Contains(t, captured, "turn four")
}

func TestExtractFilters_ParsesStrictJSON(t *testing.T) {
	t.Parallel()

	// Scenario B
	tr := NewQueryTransformer(DefaultQueryTransformConfig(),
		fixedCompleter(`{"semanticQuery":"Python roadmaps","where":{"difficulty":"beginner"}}`), nil)

	filter := tr.ExtractFilters(context.Background(), "Show me beginner Python roadmaps")
	assert.Equal(t, "Python roadmaps", filter.SemanticQuery)
	assert.Equal(t, "beginner", filter.Where["difficulty"])
}

func TestExtractFilters_LocatesJSONInsideJunk(t *testing.T) {
	t.Parallel()

	tr := NewQueryTransformer(DefaultQueryTransformConfig(),
		fixedCompleter("Sure! Here is the JSON you asked for:\n```json\n{\"semanticQuery\":\"sorting algorithms\",\"where\":{}}\n```\nHope that helps."), nil)

	filter := tr.ExtractFilters(context.Background(), "question")
	assert.Equal(t, "sorting algorithms", filter.SemanticQuery)
	assert.Empty(t, filter.Where)
}

func TestExtractFilters_FailsClosed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
	}{
		{"no JSON at all", "I cannot produce JSON."},
		{"unbalanced braces", `{"semanticQuery": "x"`},
		{"not an object schema", `{"semanticQuery": "x", "unexpected": true}`},
		{"where is not a mapping", `{"semanticQuery": "x", "where": "beginner"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := NewQueryTransformer(DefaultQueryTransformConfig(), fixedCompleter(tt.response), nil)
			filter := tr.ExtractFilters(context.Background(), "the question")
			assert.Equal(t, "the question", filter.SemanticQuery)
			assert.NotNil(t, filter.Where)
			assert.Empty(t, filter.Where)
		})
	}
}

func TestExtractFilters_ModelFailureFallsBack(t *testing.T) {
	t.Parallel()

	tr := NewQueryTransformer(DefaultQueryTransformConfig(), failingCompleter(), nil)

	filter := tr.ExtractFilters(context.Background(), "the question")
	assert.Equal(t, "the question", filter.SemanticQuery)
	assert.Empty(t, filter.Where)
}

func TestFirstJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prefixed", `noise {"a":1} trailing`, `{"a":1}`, true},
		{"nested", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"brace inside string", `{"a":"}"}`, `{"a":"}"}`, true},
		{"escaped quote inside string", `{"a":"\"}"}`, `{"a":"\"}"}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"no object", "plain text", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := firstJSONObject(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, string(got))
			}
		})
	}
}
