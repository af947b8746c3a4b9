package rag

// ====== 策略 ======

// Strategy 检索策略
type Strategy string

const (
	StrategyMultiQuery     Strategy = "multi_query"    // 多查询扩展 + 并发检索
	StrategyConversational Strategy = "conversational" // 对话历史重写
	StrategySelfQuery      Strategy = "self_query"     // 元数据过滤抽取
	StrategyHybrid         Strategy = "hybrid"         // 语义 + 关键词混合打分
)

// Valid 报告策略是否为已知值
func (s Strategy) Valid() bool {
	switch s {
	case StrategyMultiQuery, StrategyConversational, StrategySelfQuery, StrategyHybrid:
		return true
	}
	return false
}

// ====== 请求 ======

// Turn 一轮对话
type Turn struct {
	Role    string `json:"role"` // user / assistant
	Content string `json:"content"`
}

// AskOptions 请求级参数，未设置的字段由引擎配置补齐。
// Alpha 和 MinScore 用指针区分"未设置"与显式的 0，
// 否则请求端无法表达纯关键词腿（alpha=0）或零阈值。
type AskOptions struct {
	Collection string   `json:"collection,omitempty"`
	TopK       int      `json:"top_k,omitempty"`
	NumQueries int      `json:"num_queries,omitempty"` // multi_query：变体总数
	History    []Turn   `json:"history,omitempty"`     // conversational：对话历史
	Alpha      *float64 `json:"alpha,omitempty"`       // hybrid：语义权重 [0,1]
	MinScore   *float64 `json:"min_score,omitempty"`   // 覆盖引擎默认阈值
}

// AskRequest 一次回答请求
type AskRequest struct {
	Question string     `json:"question"`
	Strategy Strategy   `json:"strategy"`
	Options  AskOptions `json:"options"`
}

// ====== 检索结果 ======

// SearchResult 单条向量检索结果。分数越高越相关，取值 [0,1]。
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResponse 单次检索的返回
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// MetadataFilter 从自然语言问题中抽取的结构化过滤条件。
// 抽取失败时退化为 {SemanticQuery: 原问题, Where: {}}。
type MetadataFilter struct {
	SemanticQuery string         `json:"semanticQuery"`
	Where         map[string]any `json:"where"`
}

// ====== 回答 ======

// Source 回答引用的证据来源，内容截断为预览。
type Source struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Diagnostics 按策略区分的诊断信息（tagged union：
// 只有与 Strategy 对应的字段会被填充）。仅供调试与评估，
// 不参与任何控制流。
type Diagnostics struct {
	RequestID              string          `json:"request_id,omitempty"`
	Queries                []string        `json:"queries,omitempty"`                 // multi_query
	ContextualizedQuestion string          `json:"contextualized_question,omitempty"` // conversational
	Filter                 *MetadataFilter `json:"filter,omitempty"`                  // self_query
	Alpha                  *float64        `json:"alpha,omitempty"`                   // hybrid
}

// AnswerResponse 最终响应。要么是完整的落地回答，
// 要么是显式的"证据不足"终态，绝不部分构造。
type AnswerResponse struct {
	Answer      string       `json:"answer"`
	Sources     []Source     `json:"sources"`
	Confidence  float64      `json:"confidence"`
	Strategy    Strategy     `json:"strategy"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// InsufficientEvidenceAnswer 门控短路时返回的固定文案。
// 该路径下语言模型零调用：没有证据就不编造回答。
const InsufficientEvidenceAnswer = "I don't have enough information in the course material to answer that question confidently. Try rephrasing, or ask about a different topic."
