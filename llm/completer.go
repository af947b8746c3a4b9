package llm

import "context"

// Completer 是单次文本补全接口。
// 每次调用相互独立，模型侧不保留任何会话状态。
type Completer interface {
	// Complete 生成给定提示词的补全
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder 将文本编码为向量。
// 嵌入计算本身由外部服务完成，这里只是窄接口。
type Embedder interface {
	// Embed 返回文本的向量表示
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CompleterFunc 允许用普通函数实现 Completer。
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete 实现 Completer 接口
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
