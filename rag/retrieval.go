package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SearchOptions 单次检索参数
type SearchOptions struct {
	TopK  int            `json:"top_k"`
	Where map[string]any `json:"where,omitempty"` // 元数据等值过滤
}

// VectorSearcher 向量库的窄接口。索引的构建、持久化与嵌入计算
// 都在外部完成，这里只消费相似度检索。
type VectorSearcher interface {
	// Search 对集合执行一次相似度检索
	Search(ctx context.Context, collection, query string, opts SearchOptions) (*SearchResponse, error)
}

// FanoutPolicy 并发扇出的失败策略
type FanoutPolicy string

const (
	// FanoutFailFast 任一分支失败则整体失败，不静默返回部分结果
	FanoutFailFast FanoutPolicy = "fail_fast"
	// FanoutBestEffort 收集成功分支；仅当全部分支失败时才报错
	FanoutBestEffort FanoutPolicy = "best_effort"
)

// RetrievalExecutor 对向量库发起一次或多次检索
type RetrievalExecutor struct {
	searcher VectorSearcher
	policy   FanoutPolicy
	logger   *zap.Logger
}

// NewRetrievalExecutor 创建检索执行器。policy 为空时取 FanoutFailFast。
func NewRetrievalExecutor(searcher VectorSearcher, policy FanoutPolicy, logger *zap.Logger) *RetrievalExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = FanoutFailFast
	}
	return &RetrievalExecutor{
		searcher: searcher,
		policy:   policy,
		logger:   logger.With(zap.String("component", "retrieval_executor")),
	}
}

// Search 发起单次检索
func (e *RetrievalExecutor) Search(ctx context.Context, collection, query string, opts SearchOptions) (*SearchResponse, error) {
	resp, err := e.searcher.Search(ctx, collection, query, opts)
	if err != nil {
		return nil, fmt.Errorf("vector search %q: %w", query, err)
	}
	return resp, nil
}

// SearchAll 并发检索所有查询变体，等待全部完成后按变体顺序返回。
// fail_fast 策略下任一分支失败即整体失败；best_effort 策略仅在
// 所有分支都失败时报错，成功分支正常返回。
func (e *RetrievalExecutor) SearchAll(ctx context.Context, collection string, queries []string, opts SearchOptions) ([][]SearchResult, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	resultSets := make([][]SearchResult, len(queries))
	errs := make([]error, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			resp, err := e.searcher.Search(gctx, collection, query, opts)
			if err != nil {
				errs[i] = err
				if e.policy == FanoutFailFast {
					return fmt.Errorf("vector search %q: %w", query, err)
				}
				e.logger.Warn("search branch failed, continuing",
					zap.String("query", query), zap.Error(err))
				return nil
			}
			resultSets[i] = resp.Results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.policy == FanoutBestEffort {
		succeeded := 0
		for i := range queries {
			if errs[i] == nil {
				succeeded++
			}
		}
		if succeeded == 0 {
			return nil, fmt.Errorf("all %d search branches failed: %w", len(queries), errs[0])
		}
	}

	e.logger.Debug("fan-out retrieval complete",
		zap.Int("queries", len(queries)),
		zap.String("policy", string(e.policy)))

	return resultSets, nil
}
