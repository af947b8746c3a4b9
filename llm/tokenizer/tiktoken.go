package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 家族模型封装 tiktoken。
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

// modelEncodings 将模型名称映射到其 tiktoken 编码和上下文大小。
var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"gpt-4o":                 {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":            {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4-turbo":            {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":                  {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo":          {encoding: "cl100k_base", maxTokens: 16385},
	"text-embedding-3-large": {encoding: "cl100k_base", maxTokens: 8191},
	"text-embedding-3-small": {encoding: "cl100k_base", maxTokens: 8191},
}

// NewTiktokenTokenizer 为给定模型创建 tiktoken 分词器。
// 未知模型返回错误，调用方应回退到估算器。
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	info, ok := modelEncodings[model]
	if !ok {
		// 尝试前缀匹配，取最长的命中项（gpt-4o-mini 优先于 gpt-4）
		best := ""
		for prefix, i := range modelEncodings {
			if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
				best = prefix
				info = i
				ok = true
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("no tiktoken encoding for model %q", model)
	}

	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}, nil
}

// init 懒加载编码表（首次计数时才下载/解析 BPE 数据）。
func (t *TiktokenTokenizer) init() {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("load encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
}

// CountTokens 返回文本的 token 数
func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	t.init()
	if t.initErr != nil {
		return 0, t.initErr
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// MaxTokens 返回模型最大上下文长度
func (t *TiktokenTokenizer) MaxTokens() int { return t.maxTokens }

// Name 返回分词器名称
func (t *TiktokenTokenizer) Name() string { return "tiktoken/" + t.encoding }
