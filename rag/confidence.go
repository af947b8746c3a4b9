package rag

import "go.uber.org/zap"

// ConfidenceGate 按最小分数阈值过滤证据，决定是继续生成
// 还是以"证据不足"短路终止。
type ConfidenceGate struct {
	minScore float64
	logger   *zap.Logger
}

// NewConfidenceGate 创建置信度门控
func NewConfidenceGate(minScore float64, logger *zap.Logger) *ConfidenceGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfidenceGate{
		minScore: minScore,
		logger:   logger.With(zap.String("component", "confidence_gate")),
	}
}

// Filter 保留 score >= threshold 的结果，顺序不变。
// override 非 nil 时覆盖构造时的阈值，包括显式的 0。
func (g *ConfidenceGate) Filter(results []SearchResult, override *float64) []SearchResult {
	threshold := g.minScore
	if override != nil {
		threshold = *override
	}

	kept := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}

	if len(kept) == 0 {
		g.logger.Info("no evidence cleared confidence threshold",
			zap.Float64("threshold", threshold),
			zap.Int("candidates", len(results)))
	}
	return kept
}

// InsufficientResponse 构造证据不足的终态响应。
// 这条路径上语言模型零调用。
func InsufficientResponse(strategy Strategy, diag *Diagnostics) *AnswerResponse {
	return &AnswerResponse{
		Answer:      InsufficientEvidenceAnswer,
		Sources:     []Source{},
		Confidence:  0,
		Strategy:    strategy,
		Diagnostics: diag,
	}
}
