// 查询转换：在检索之前按策略改写/增强原始问题。
// 所有转换失败都降级为安全的透传值，绝不让管线整体失败。

package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/tutorflow/llm"
	"go.uber.org/zap"
)

// QueryTransformConfig 配置查询转换器
type QueryTransformConfig struct {
	MaxVariants  int `json:"max_variants"`  // 变体总数上限（含原问题）
	HistoryTurns int `json:"history_turns"` // contextualize 使用的历史轮数
}

// DefaultQueryTransformConfig 返回默认配置
func DefaultQueryTransformConfig() QueryTransformConfig {
	return QueryTransformConfig{
		MaxVariants:  3,
		HistoryTurns: 3,
	}
}

// QueryTransformer 为更好的检索而转换查询
type QueryTransformer struct {
	config    QueryTransformConfig
	completer llm.Completer
	logger    *zap.Logger
}

// NewQueryTransformer 创建查询转换器。
// completer 通过构造注入，测试中可替换为确定性 mock。
func NewQueryTransformer(config QueryTransformConfig, completer llm.Completer, logger *zap.Logger) *QueryTransformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxVariants < 1 {
		config.MaxVariants = 1
	}
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = 3
	}
	return &QueryTransformer{
		config:    config,
		completer: completer,
		logger:    logger.With(zap.String("component", "query_transformer")),
	}
}

// listNumberRe 去除模型输出里的行首编号（"1." / "2)"）
var listNumberRe = regexp.MustCompile(`^\d+[\.\)]\s*`)

// GenerateVariants 生成至多 n 个检索变体。
// 变体 0 恒为原问题本身；模型失败时仅返回 [question]。
func (t *QueryTransformer) GenerateVariants(ctx context.Context, question string, n int) []string {
	if n < 1 {
		n = 1
	}
	variants := []string{question}
	if n == 1 || t.completer == nil {
		return variants
	}

	prompt := fmt.Sprintf(`Generate %d alternative search queries for the following question.
Each alternative should capture a different aspect or phrasing of the same information need.
Return only the queries, one per line.

Question: %s

Alternative queries:`, n-1, question)

	response, err := t.completer.Complete(ctx, prompt)
	if err != nil {
		t.logger.Warn("variant generation failed, using original question only", zap.Error(err))
		return variants
	}

	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		line = listNumberRe.ReplaceAllString(strings.TrimSpace(line), "")
		if line != "" && line != question {
			variants = append(variants, line)
		}
		if len(variants) >= n {
			break
		}
	}
	return variants
}

// Contextualize 结合最近几轮历史，把追问改写成独立完整的问题。
// 历史为空直接返回原问题；模型失败同样返回原问题。
func (t *QueryTransformer) Contextualize(ctx context.Context, question string, history []Turn) string {
	if len(history) == 0 || t.completer == nil {
		return question
	}

	recent := history
	if len(recent) > t.config.HistoryTurns {
		recent = recent[len(recent)-t.config.HistoryTurns:]
	}

	var sb strings.Builder
	for _, turn := range recent {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}

	prompt := fmt.Sprintf(`Given the conversation below, rewrite the follow-up question into a standalone question that can be understood without the conversation.
Return only the rewritten question.

Conversation:
%s
Follow-up question: %s

Standalone question:`, sb.String(), question)

	response, err := t.completer.Complete(ctx, prompt)
	if err != nil {
		t.logger.Warn("contextualization failed, using question as-is", zap.Error(err))
		return question
	}

	rewritten := strings.TrimSpace(response)
	if rewritten == "" {
		return question
	}
	return rewritten
}

// filterSchema 是 ExtractFilters 的封闭解码模式。
// 未知字段一律拒绝，防止把松散匹配的 JSON 当成有效过滤条件。
type filterSchema struct {
	SemanticQuery string         `json:"semanticQuery"`
	Where         map[string]any `json:"where"`
}

// ExtractFilters 从问题中抽取 {semanticQuery, where} 过滤条件。
// 模型输出视为不可信文本：只定位第一个配平的 JSON 对象子串并
// 严格解码，任何结构不匹配都 fail closed 退回默认值。
func (t *QueryTransformer) ExtractFilters(ctx context.Context, question string) MetadataFilter {
	fallback := MetadataFilter{SemanticQuery: question, Where: map[string]any{}}
	if t.completer == nil {
		return fallback
	}

	prompt := fmt.Sprintf(`Extract a semantic search query and metadata filters from the question below.
Respond with a single JSON object of the form {"semanticQuery": "...", "where": {"field": "value"}}.
Use an empty "where" object when the question carries no filterable attributes.

Question: %s

JSON:`, question)

	response, err := t.completer.Complete(ctx, prompt)
	if err != nil {
		t.logger.Warn("filter extraction failed, using empty filter", zap.Error(err))
		return fallback
	}

	raw, ok := firstJSONObject(response)
	if !ok {
		t.logger.Warn("no JSON object found in filter extraction output")
		return fallback
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var parsed filterSchema
	if err := dec.Decode(&parsed); err != nil {
		t.logger.Warn("filter extraction output failed strict decode", zap.Error(err))
		return fallback
	}

	if parsed.SemanticQuery == "" {
		parsed.SemanticQuery = question
	}
	if parsed.Where == nil {
		parsed.Where = map[string]any{}
	}
	return MetadataFilter{SemanticQuery: parsed.SemanticQuery, Where: parsed.Where}
}

// firstJSONObject 返回文本中第一个大括号配平的 JSON 对象子串。
// 扫描时跳过字符串字面量内部的大括号与转义引号。
func firstJSONObject(text string) ([]byte, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(text[start : i+1]), true
			}
		}
	}
	return nil, false
}
