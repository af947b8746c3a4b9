// 回答生成：用幸存证据构建落地提示词，单次调用语言模型。

package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/tutorflow/llm"
	"github.com/BaSui01/tutorflow/llm/tokenizer"
	"go.uber.org/zap"
)

// SynthesizerConfig 配置回答生成器
type SynthesizerConfig struct {
	PreviewLength    int `json:"preview_length"`     // 来源内容预览长度（按 rune）
	MaxContextTokens int `json:"max_context_tokens"` // 证据块 token 预算，0 表示不限
	HistoryTurns     int `json:"history_turns"`      // 提示词中携带的历史轮数
}

// DefaultSynthesizerConfig 返回默认配置
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		PreviewLength:    200,
		MaxContextTokens: 4096,
		HistoryTurns:     3,
	}
}

// AnswerSynthesizer 从幸存证据合成最终回答
type AnswerSynthesizer struct {
	config    SynthesizerConfig
	completer llm.Completer
	counter   tokenizer.Tokenizer
	logger    *zap.Logger
}

// NewAnswerSynthesizer 创建回答生成器。
// counter 为 nil 时使用字符估算器做 token 预算。
func NewAnswerSynthesizer(config SynthesizerConfig, completer llm.Completer, counter tokenizer.Tokenizer, logger *zap.Logger) *AnswerSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PreviewLength <= 0 {
		config.PreviewLength = 200
	}
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = 3
	}
	if counter == nil {
		counter = tokenizer.NewEstimatorTokenizer("generic", 0)
	}
	return &AnswerSynthesizer{
		config:    config,
		completer: completer,
		counter:   counter,
		logger:    logger.With(zap.String("component", "answer_synthesizer")),
	}
}

// Synthesize 构建提示词并调用语言模型（成功路径恰好一次）。
// confidence 取最高分幸存结果的分数；sources 逐条回显证据。
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, evidence []SearchResult, history []Turn, strategy Strategy, diag *Diagnostics) (*AnswerResponse, error) {
	prompt := s.BuildPrompt(question, evidence, history)

	answer, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("answer generation: %w", err)
	}

	sources := make([]Source, len(evidence))
	for i, r := range evidence {
		sources[i] = Source{
			Content:  truncateRunes(r.Content, s.config.PreviewLength),
			Score:    r.Score,
			Metadata: r.Metadata,
		}
	}

	s.logger.Info("answer synthesized",
		zap.String("strategy", string(strategy)),
		zap.Int("evidence", len(evidence)),
		zap.Float64("confidence", evidence[0].Score))

	return &AnswerResponse{
		Answer:      strings.TrimSpace(answer),
		Sources:     sources,
		Confidence:  evidence[0].Score,
		Strategy:    strategy,
		Diagnostics: diag,
	}, nil
}

// BuildPrompt 构建单条落地提示词：编号证据块 + 可选近期对话 + 问题。
// 证据块超出 token 预算时从尾部丢弃片段，不重排。
func (s *AnswerSynthesizer) BuildPrompt(question string, evidence []SearchResult, history []Turn) string {
	var context strings.Builder
	used := 0
	included := 0

	for i, r := range evidence {
		snippet := fmt.Sprintf("[%d] %s\n", i+1, strings.TrimSpace(r.Content))
		if s.config.MaxContextTokens > 0 {
			n, err := s.counter.CountTokens(snippet)
			if err != nil {
				n = len(snippet) / 4
			}
			if included > 0 && used+n > s.config.MaxContextTokens {
				s.logger.Debug("evidence trimmed to token budget",
					zap.Int("included", included),
					zap.Int("dropped", len(evidence)-included))
				break
			}
			used += n
		}
		context.WriteString(snippet)
		included++
	}

	var sb strings.Builder
	sb.WriteString("You are a tutor for an online course platform. Answer the student's question using only the context below. Cite the snippet numbers you rely on. If the context does not contain the answer, say so.\n\n")
	sb.WriteString("Context:\n")
	sb.WriteString(context.String())

	if len(history) > 0 {
		recent := history
		if len(recent) > s.config.HistoryTurns {
			recent = recent[len(recent)-s.config.HistoryTurns:]
		}
		sb.WriteString("\nRecent conversation:\n")
		for _, turn := range recent {
			sb.WriteString(turn.Role)
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

// truncateRunes 按 rune 截断，避免把多字节字符切半。
func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
