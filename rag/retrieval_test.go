package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSearcher 按查询返回预置结果，可注入指定查询的失败。
type stubSearcher struct {
	mu      sync.Mutex
	results map[string][]SearchResult
	fail    map[string]error
	calls   int
}

func (s *stubSearcher) Search(ctx context.Context, collection, query string, opts SearchOptions) (*SearchResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if err := s.fail[query]; err != nil {
		return nil, err
	}
	results := s.results[query]
	return &SearchResponse{Results: results, Count: len(results)}, nil
}

func TestRetrievalExecutor_SearchAllPreservesQueryOrder(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{results: map[string][]SearchResult{
		"q1": {{ID: "a", Score: 0.9}},
		"q2": {{ID: "b", Score: 0.8}},
		"q3": {{ID: "c", Score: 0.7}},
	}}
	exec := NewRetrievalExecutor(searcher, FanoutFailFast, nil)

	sets, err := exec.SearchAll(context.Background(), "col", []string{"q1", "q2", "q3"}, SearchOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, sets, 3)
	assert.Equal(t, "a", sets[0][0].ID)
	assert.Equal(t, "b", sets[1][0].ID)
	assert.Equal(t, "c", sets[2][0].ID)
}

func TestRetrievalExecutor_FailFastOnAnyBranchFailure(t *testing.T) {
	t.Parallel()

	// Scenario E: 任一并发分支失败，整体必须失败
	searcher := &stubSearcher{
		results: map[string][]SearchResult{
			"good1": {{ID: "a", Score: 0.9}},
			"good2": {{ID: "b", Score: 0.8}},
		},
		fail: map[string]error{"bad": errors.New("index unavailable")},
	}
	exec := NewRetrievalExecutor(searcher, FanoutFailFast, nil)

	sets, err := exec.SearchAll(context.Background(), "col", []string{"good1", "bad", "good2"}, SearchOptions{TopK: 5})
	require.Error(t, err)
	assert.Nil(t, sets)
	assert.Contains(t, err.Error(), "index unavailable")
}

func TestRetrievalExecutor_BestEffortKeepsSuccessfulBranches(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{
		results: map[string][]SearchResult{"good": {{ID: "a", Score: 0.9}}},
		fail:    map[string]error{"bad": errors.New("index unavailable")},
	}
	exec := NewRetrievalExecutor(searcher, FanoutBestEffort, nil)

	sets, err := exec.SearchAll(context.Background(), "col", []string{"good", "bad"}, SearchOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "a", sets[0][0].ID)
	assert.Nil(t, sets[1]) // 失败分支为空
}

func TestRetrievalExecutor_BestEffortFailsWhenAllBranchesFail(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{fail: map[string]error{
		"q1": errors.New("down"),
		"q2": errors.New("down"),
	}}
	exec := NewRetrievalExecutor(searcher, FanoutBestEffort, nil)

	_, err := exec.SearchAll(context.Background(), "col", []string{"q1", "q2"}, SearchOptions{TopK: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 search branches failed")
}

func TestRetrievalExecutor_SearchAllEmptyQueries(t *testing.T) {
	t.Parallel()

	exec := NewRetrievalExecutor(&stubSearcher{}, FanoutFailFast, nil)
	sets, err := exec.SearchAll(context.Background(), "col", nil, SearchOptions{})
	require.NoError(t, err)
	assert.Nil(t, sets)
}

func TestRetrievalExecutor_SingleSearchWrapsError(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{fail: map[string]error{"q": errors.New("boom")}}
	exec := NewRetrievalExecutor(searcher, FanoutFailFast, nil)

	_, err := exec.Search(context.Background(), "col", "q", SearchOptions{TopK: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `vector search "q"`)
}
