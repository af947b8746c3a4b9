// 结果融合：把多次检索的候选集合并为一份去重、有序的证据列表。

package rag

import (
	"sort"

	"go.uber.org/zap"
)

// KeywordScorer 关键词打分接口。混合检索的词法腿通过它可插拔，
// 替换实现无需触碰融合逻辑。
type KeywordScorer interface {
	// Score 返回查询与文本的关键词匹配分数 [0,1]
	Score(query, content string) float64
}

// ConstantKeywordScorer 固定分数的占位实现。
// 真正的词法打分（BM25 等）尚未接入，这是有意保留的存根，
// 不要在融合层内部用未声明的启发式替代它。
type ConstantKeywordScorer struct {
	Value float64
}

// Score 返回固定分数
func (s ConstantKeywordScorer) Score(query, content string) float64 { return s.Value }

// DefaultKeywordScore 占位关键词分数
const DefaultKeywordScore = 0.5

// ResultFuser 去重、合并并重排序候选文档
type ResultFuser struct {
	logger *zap.Logger
}

// NewResultFuser 创建结果融合器
func NewResultFuser(logger *zap.Logger) *ResultFuser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultFuser{logger: logger.With(zap.String("component", "result_fuser"))}
}

// Merge 按 ID 去重合并多个结果集。同一 ID 多次出现时保留最高分
// 的那一次（平分取先见者），输出顺序为首次出现顺序。幂等：
// Merge(S, S) == Merge(S)。
func (f *ResultFuser) Merge(resultSets ...[]SearchResult) []SearchResult {
	merged := make([]SearchResult, 0)
	index := make(map[string]int) // id -> merged 中的下标

	for _, set := range resultSets {
		for _, r := range set {
			at, seen := index[r.ID]
			if !seen {
				index[r.ID] = len(merged)
				merged = append(merged, r)
				continue
			}
			if r.Score > merged[at].Score {
				merged[at] = r
			}
		}
	}
	return merged
}

// Rerank 按分数降序稳定排序并截断到 limit。
// 输出分数序列必然非增。
func (f *ResultFuser) Rerank(results []SearchResult, limit int) []SearchResult {
	ranked := make([]SearchResult, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// HybridScore 语义分数与关键词分数的线性混合。
// alpha=1 时完全退化为纯语义排序。
func HybridScore(semantic, keyword, alpha float64) float64 {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return alpha*semantic + (1-alpha)*keyword
}

// ApplyHybrid 用关键词打分器重写每条结果的分数为混合分数。
func (f *ResultFuser) ApplyHybrid(query string, results []SearchResult, scorer KeywordScorer, alpha float64) []SearchResult {
	if scorer == nil {
		scorer = ConstantKeywordScorer{Value: DefaultKeywordScore}
	}

	mixed := make([]SearchResult, len(results))
	for i, r := range results {
		r.Score = HybridScore(r.Score, scorer.Score(query, r.Content), alpha)
		mixed[i] = r
	}
	return mixed
}
