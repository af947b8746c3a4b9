package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/tutorflow/rag"
)

// SearchCall 记录单次检索调用
type SearchCall struct {
	Collection string
	Query      string
	Opts       rag.SearchOptions
}

// MockSearcher 是 rag.VectorSearcher 的模拟实现。
// 按查询文本匹配返回预置结果集，可按查询注入错误。
type MockSearcher struct {
	mu sync.Mutex

	// 按查询文本预置的结果；default 键作为兜底
	resultsByQuery map[string][]rag.SearchResult
	errByQuery     map[string]error
	err            error

	searchFunc func(ctx context.Context, collection, query string, opts rag.SearchOptions) (*rag.SearchResponse, error)

	calls []SearchCall
}

// NewMockSearcher 创建新的 MockSearcher
func NewMockSearcher() *MockSearcher {
	return &MockSearcher{
		resultsByQuery: make(map[string][]rag.SearchResult),
		errByQuery:     make(map[string]error),
	}
}

// WithResults 预置某个查询的返回结果
func (m *MockSearcher) WithResults(query string, results ...rag.SearchResult) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resultsByQuery[query] = results
	return m
}

// WithDefaultResults 预置兜底结果（任何未匹配查询返回它）
func (m *MockSearcher) WithDefaultResults(results ...rag.SearchResult) *MockSearcher {
	return m.WithResults("", results...)
}

// WithQueryError 为特定查询注入错误
func (m *MockSearcher) WithQueryError(query string, err error) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errByQuery[query] = err
	return m
}

// WithError 所有检索返回错误
func (m *MockSearcher) WithError(err error) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithSearchFunc 设置自定义检索逻辑
func (m *MockSearcher) WithSearchFunc(fn func(ctx context.Context, collection, query string, opts rag.SearchOptions) (*rag.SearchResponse, error)) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchFunc = fn
	return m
}

// Search 实现 rag.VectorSearcher
func (m *MockSearcher) Search(ctx context.Context, collection, query string, opts rag.SearchOptions) (*rag.SearchResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SearchCall{Collection: collection, Query: query, Opts: opts})
	fn := m.searchFunc
	err := m.err
	if qerr, ok := m.errByQuery[query]; ok {
		err = qerr
	}
	results, ok := m.resultsByQuery[query]
	if !ok {
		results = m.resultsByQuery[""]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, collection, query, opts)
	}
	if err != nil {
		return nil, err
	}

	out := make([]rag.SearchResult, len(results))
	copy(out, results)
	return &rag.SearchResponse{Results: out, Count: len(out)}, nil
}

// Calls 返回记录的全部调用
func (m *MockSearcher) Calls() []SearchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SearchCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回累计调用次数
func (m *MockSearcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
