package rag

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/BaSui01/tutorflow/llm"
	"go.uber.org/zap"
)

// Document 可索引文档
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ====== 内存向量检索（用于测试和小规模应用）======

// InMemorySearcher 内存向量检索器。文档向量由注入的 Embedder
// 在索引时计算，检索时对查询做同样的嵌入后取余弦相似度。
type InMemorySearcher struct {
	embedder llm.Embedder

	mu          sync.RWMutex
	collections map[string][]memoryEntry

	logger *zap.Logger
}

type memoryEntry struct {
	doc       Document
	embedding []float64
}

// NewInMemorySearcher 创建内存检索器
func NewInMemorySearcher(embedder llm.Embedder, logger *zap.Logger) *InMemorySearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemorySearcher{
		embedder:    embedder,
		collections: make(map[string][]memoryEntry),
		logger:      logger.With(zap.String("component", "memory_searcher")),
	}
}

// Index 把文档写入集合
func (s *InMemorySearcher) Index(ctx context.Context, collection string, docs []Document) error {
	entries := make([]memoryEntry, 0, len(docs))
	for _, doc := range docs {
		vec, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		entries = append(entries, memoryEntry{doc: doc, embedding: vec})
	}

	s.mu.Lock()
	s.collections[collection] = append(s.collections[collection], entries...)
	total := len(s.collections[collection])
	s.mu.Unlock()

	s.logger.Info("documents indexed",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
		zap.Int("total", total))
	return nil
}

// Search 余弦相似度检索，支持元数据等值过滤
func (s *InMemorySearcher) Search(ctx context.Context, collection, query string, opts SearchOptions) (*SearchResponse, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	entries := s.collections[collection]
	s.mu.RUnlock()

	results := make([]SearchResult, 0, len(entries))
	for _, entry := range entries {
		if !matchesWhere(entry.doc.Metadata, opts.Where) {
			continue
		}
		results = append(results, SearchResult{
			ID:       entry.doc.ID,
			Content:  entry.doc.Content,
			Score:    cosineSimilarity(queryVec, entry.embedding),
			Metadata: entry.doc.Metadata,
		})
	}

	results = NewResultFuser(nil).Rerank(results, opts.TopK)
	return &SearchResponse{Results: results, Count: len(results)}, nil
}

// matchesWhere 元数据等值匹配；where 为空时全部通过。
func matchesWhere(metadata, where map[string]any) bool {
	for field, want := range where {
		got, ok := metadata[field]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// cosineSimilarity 余弦相似度
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
