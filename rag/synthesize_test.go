package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BaSui01/tutorflow/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerSynthesizer_BuildPromptEnumeratesEvidence(t *testing.T) {
	t.Parallel()

	s := NewAnswerSynthesizer(DefaultSynthesizerConfig(), nil, nil, nil)
	evidence := []SearchResult{
		{ID: "a", Content: "first snippet", Score: 0.9},
		{ID: "b", Content: "second snippet", Score: 0.7},
	}

	prompt := s.BuildPrompt("what is X?", evidence, nil)
	assert.Contains(t, prompt, "[1] first snippet")
	assert.Contains(t, prompt, "[2] second snippet")
	assert.Contains(t, prompt, "Question: what is X?")
	assert.NotContains(t, prompt, "Recent conversation")
}

func TestAnswerSynthesizer_BuildPromptIncludesRecentHistory(t *testing.T) {
	t.Parallel()

	s := NewAnswerSynthesizer(DefaultSynthesizerConfig(), nil, nil, nil)
	history := []Turn{
		{Role: "user", Content: "old turn"},
		{Role: "user", Content: "turn b"},
		{Role: "assistant", Content: "turn c"},
		{Role: "user", Content: "turn d"},
	}

	prompt := s.BuildPrompt("follow-up", []SearchResult{{Content: "ctx", Score: 0.8}}, history)
	assert.Contains(t, prompt, "Recent conversation")
	assert.NotContains(t, prompt, "old turn") // 仅保留最近 3 轮
	assert.Contains(t, prompt, "turn b")
	assert.Contains(t, prompt, "turn d")
}

func TestAnswerSynthesizer_TokenBudgetTrimsTail(t *testing.T) {
	t.Parallel()

	cfg := DefaultSynthesizerConfig()
	cfg.MaxContextTokens = 12 // 足够一条证据，放不下三条

	s := NewAnswerSynthesizer(cfg, nil, nil, nil)
	evidence := []SearchResult{
		{Content: "the first snippet stays in the prompt", Score: 0.9},
		{Content: "the second snippet should be dropped entirely", Score: 0.8},
		{Content: "the third snippet should be dropped too", Score: 0.7},
	}

	prompt := s.BuildPrompt("q", evidence, nil)
	assert.Contains(t, prompt, "[1] the first snippet")
	assert.NotContains(t, prompt, "[3]")
}

func TestAnswerSynthesizer_SynthesizeBuildsFullResponse(t *testing.T) {
	t.Parallel()

	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "  Grounded answer [1].  ", nil
	})
	s := NewAnswerSynthesizer(DefaultSynthesizerConfig(), completer, nil, nil)

	evidence := []SearchResult{
		{ID: "a", Content: strings.Repeat("x", 300), Score: 0.92, Metadata: map[string]any{"course": "ds"}},
		{ID: "b", Content: "short", Score: 0.81},
	}

	resp, err := s.Synthesize(context.Background(), "q", evidence, nil, StrategyMultiQuery, &Diagnostics{Queries: []string{"q"}})
	require.NoError(t, err)

	assert.Equal(t, "Grounded answer [1].", resp.Answer)
	assert.Equal(t, 0.92, resp.Confidence) // 置信度取最高分证据
	require.Len(t, resp.Sources, 2)
	assert.Len(t, []rune(strings.TrimSuffix(resp.Sources[0].Content, "...")), 200)
	assert.Equal(t, "short", resp.Sources[1].Content)
	assert.Equal(t, map[string]any{"course": "ds"}, resp.Sources[0].Metadata)
	assert.Equal(t, StrategyMultiQuery, resp.Strategy)
	require.NotNil(t, resp.Diagnostics)
	assert.Equal(t, []string{"q"}, resp.Diagnostics.Queries)
}

func TestAnswerSynthesizer_GenerationFailurePropagates(t *testing.T) {
	t.Parallel()

	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model overloaded")
	})
	s := NewAnswerSynthesizer(DefaultSynthesizerConfig(), completer, nil, nil)

	_, err := s.Synthesize(context.Background(), "q", []SearchResult{{Content: "e", Score: 0.9}}, nil, StrategyHybrid, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer generation")
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "abc...", truncateRunes("abcdef", 3))
	// 多字节字符不被切半
	assert.Equal(t, "数据结...", truncateRunes("数据结构与算法", 3))
}
