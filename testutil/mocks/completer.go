// MockCompleter 的语言模型测试模拟实现。
//
// 支持固定响应、逐次响应与错误注入场景，并记录每次调用，
// 便于断言调用次数（例如门控短路路径的零调用）。
package mocks

import (
	"context"
	"sync"
)

// MockCompleter 是 llm.Completer 的模拟实现
type MockCompleter struct {
	mu sync.Mutex

	// 响应配置
	response  string
	responses []string // 逐次返回，耗尽后回退到 response
	err       error

	completeFunc func(ctx context.Context, prompt string) (string, error)

	// 调用记录
	prompts   []string
	callCount int
}

// NewMockCompleter 创建新的 MockCompleter
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{response: "Mock answer"}
}

// WithResponse 设置固定响应内容
func (m *MockCompleter) WithResponse(response string) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithResponses 设置逐次返回的响应序列
func (m *MockCompleter) WithResponses(responses ...string) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	return m
}

// WithError 设置返回错误
func (m *MockCompleter) WithError(err error) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithCompleteFunc 设置自定义补全逻辑
func (m *MockCompleter) WithCompleteFunc(fn func(ctx context.Context, prompt string) (string, error)) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// Complete 实现 llm.Completer
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	idx := m.callCount
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	fn := m.completeFunc
	err := m.err
	resp := m.response
	if idx < len(m.responses) {
		resp = m.responses[idx]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// CallCount 返回累计调用次数
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts 返回记录的全部提示词
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// LastPrompt 返回最近一次提示词，未调用过时返回空串
func (m *MockCompleter) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
