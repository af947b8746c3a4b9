// Package tokenizer 提供统一的 token 计数能力。
// 回答引擎用它裁剪证据块，使提示词不超过模型上下文预算。
package tokenizer

// Tokenizer 是统一的 token 计数接口。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数
	CountTokens(text string) (int, error)

	// MaxTokens 返回模型的最大上下文长度
	MaxTokens() int

	// Name 返回分词器名称
	Name() string
}

// ForModel 返回给定模型的最优分词器。
// OpenAI 家族模型用 tiktoken 精确计数，其余回退到估算器。
func ForModel(model string) Tokenizer {
	if t, err := NewTiktokenTokenizer(model); err == nil {
		return t
	}
	return NewEstimatorTokenizer(model, 0)
}
