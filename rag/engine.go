// 引擎：策略分发与管线编排。
// 每次请求严格线性执行 转换 → 检索 → 融合 → 门控 → (短路 | 生成)，
// 无重试循环，阶段之间不落任何持久状态。

package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/tutorflow/internal/metrics"
	"github.com/BaSui01/tutorflow/llm"
	"github.com/BaSui01/tutorflow/llm/tokenizer"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EngineConfig 配置回答引擎
type EngineConfig struct {
	Collection   string       `json:"collection"`    // 默认检索集合
	TopK         int          `json:"top_k"`         // 每次检索的候选数
	NumQueries   int          `json:"num_queries"`   // multi_query 变体总数
	MinScore     float64      `json:"min_score"`     // 置信度门控阈值
	Alpha        float64      `json:"alpha"`         // hybrid 语义权重
	FanoutPolicy FanoutPolicy `json:"fanout_policy"` // 扇出失败策略

	Transform   QueryTransformConfig `json:"transform"`
	Synthesizer SynthesizerConfig    `json:"synthesizer"`
}

// DefaultEngineConfig 返回默认配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Collection:   "course_material",
		TopK:         5,
		NumQueries:   3,
		MinScore:     0.3,
		Alpha:        0.7,
		FanoutPolicy: FanoutFailFast,
		Transform:    DefaultQueryTransformConfig(),
		Synthesizer:  DefaultSynthesizerConfig(),
	}
}

// Engine 自适应检索增强回答引擎。
// 纯粹是输入加外部服务的函数：不同请求间无共享可变状态，
// 可以安全并发调用。
type Engine struct {
	config      EngineConfig
	transformer *QueryTransformer
	executor    *RetrievalExecutor
	fuser       *ResultFuser
	gate        *ConfidenceGate
	synthesizer *AnswerSynthesizer
	keyword     KeywordScorer
	collector   *metrics.Collector
	tracer      trace.Tracer
	logger      *zap.Logger
}

// EngineOption 引擎可选项
type EngineOption func(*Engine)

// WithKeywordScorer 替换混合检索的关键词打分器
func WithKeywordScorer(scorer KeywordScorer) EngineOption {
	return func(e *Engine) { e.keyword = scorer }
}

// WithCollector 接入指标收集器
func WithCollector(c *metrics.Collector) EngineOption {
	return func(e *Engine) { e.collector = c }
}

// WithTokenCounter 替换证据预算用的分词器
func WithTokenCounter(t tokenizer.Tokenizer) EngineOption {
	return func(e *Engine) {
		e.synthesizer = NewAnswerSynthesizer(e.config.Synthesizer, e.synthesizer.completer, t, e.logger)
	}
}

// NewEngine 创建回答引擎。completer 与 searcher 必须注入，
// 不存在任何隐藏的全局客户端。
func NewEngine(config EngineConfig, completer llm.Completer, searcher VectorSearcher, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.NumQueries <= 0 {
		config.NumQueries = 3
	}

	e := &Engine{
		config:      config,
		transformer: NewQueryTransformer(config.Transform, completer, logger),
		executor:    NewRetrievalExecutor(searcher, config.FanoutPolicy, logger),
		fuser:       NewResultFuser(logger),
		gate:        NewConfidenceGate(config.MinScore, logger),
		synthesizer: NewAnswerSynthesizer(config.Synthesizer, completer, nil, logger),
		keyword:     ConstantKeywordScorer{Value: DefaultKeywordScore},
		tracer:      otel.Tracer("github.com/BaSui01/tutorflow/rag"),
		logger:      logger.With(zap.String("component", "engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ask 执行一次回答请求。返回完整的 AnswerResponse（落地回答或
// 证据不足终态），或向上传播检索/生成阶段的致命错误。
func (e *Engine) Ask(ctx context.Context, req AskRequest) (*AnswerResponse, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if !req.Strategy.Valid() {
		return nil, fmt.Errorf("unknown strategy %q", req.Strategy)
	}
	if req.Options.Collection == "" {
		req.Options.Collection = e.config.Collection
	}
	if req.Options.TopK <= 0 {
		req.Options.TopK = e.config.TopK
	}

	requestID := uuid.NewString()
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "rag.Ask",
		trace.WithAttributes(
			attribute.String("rag.strategy", string(req.Strategy)),
			attribute.String("rag.request_id", requestID),
		))
	defer span.End()

	logger := e.logger.With(
		zap.String("request_id", requestID),
		zap.String("strategy", string(req.Strategy)))
	logger.Info("ask started", zap.String("question", req.Question))

	var (
		resp *AnswerResponse
		err  error
	)
	switch req.Strategy {
	case StrategyMultiQuery:
		resp, err = e.askMultiQuery(ctx, req, requestID)
	case StrategyConversational:
		resp, err = e.askConversational(ctx, req, requestID)
	case StrategySelfQuery:
		resp, err = e.askSelfQuery(ctx, req, requestID)
	case StrategyHybrid:
		resp, err = e.askHybrid(ctx, req, requestID)
	}

	outcome := metrics.OutcomeAnswered
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
		span.RecordError(err)
		logger.Error("ask failed", zap.Error(err))
	case resp.Answer == InsufficientEvidenceAnswer:
		outcome = metrics.OutcomeInsufficient
		logger.Info("ask short-circuited: insufficient evidence")
	default:
		logger.Info("ask answered",
			zap.Float64("confidence", resp.Confidence),
			zap.Int("sources", len(resp.Sources)))
	}
	span.SetAttributes(attribute.String("rag.outcome", outcome))
	if e.collector != nil {
		e.collector.RecordAsk(string(req.Strategy), outcome, time.Since(start))
	}

	return resp, err
}

// askMultiQuery 多查询策略：变体生成 → 并发检索 → 融合重排。
func (e *Engine) askMultiQuery(ctx context.Context, req AskRequest, requestID string) (*AnswerResponse, error) {
	n := req.Options.NumQueries
	if n <= 0 {
		n = e.config.NumQueries
	}

	variants := e.transformStage(ctx, func(ctx context.Context) []string {
		return e.transformer.GenerateVariants(ctx, req.Question, n)
	})
	diag := &Diagnostics{RequestID: requestID, Queries: variants}

	if e.collector != nil {
		e.collector.RecordFanout(len(variants))
	}

	resultSets, err := e.executor.SearchAll(ctx, req.Options.Collection, variants, SearchOptions{TopK: req.Options.TopK})
	if err != nil {
		return nil, err
	}

	fused := e.fuser.Merge(resultSets...)
	ranked := e.fuser.Rerank(fused, req.Options.TopK)
	return e.gateAndSynthesize(ctx, req.Question, ranked, nil, req, diag)
}

// askConversational 对话策略：历史重写 → 单次检索。
func (e *Engine) askConversational(ctx context.Context, req AskRequest, requestID string) (*AnswerResponse, error) {
	standalone := e.transformStage(ctx, func(ctx context.Context) []string {
		return []string{e.transformer.Contextualize(ctx, req.Question, req.Options.History)}
	})[0]
	diag := &Diagnostics{RequestID: requestID, ContextualizedQuestion: standalone}

	resp, err := e.executor.Search(ctx, req.Options.Collection, standalone, SearchOptions{TopK: req.Options.TopK})
	if err != nil {
		return nil, err
	}

	ranked := e.fuser.Rerank(resp.Results, req.Options.TopK)
	return e.gateAndSynthesize(ctx, standalone, ranked, req.Options.History, req, diag)
}

// askSelfQuery 自查询策略：过滤条件抽取 → 带 where 的单次检索。
func (e *Engine) askSelfQuery(ctx context.Context, req AskRequest, requestID string) (*AnswerResponse, error) {
	var filter MetadataFilter
	e.transformStage(ctx, func(ctx context.Context) []string {
		filter = e.transformer.ExtractFilters(ctx, req.Question)
		return nil
	})
	diag := &Diagnostics{RequestID: requestID, Filter: &filter}

	resp, err := e.executor.Search(ctx, req.Options.Collection, filter.SemanticQuery, SearchOptions{
		TopK:  req.Options.TopK,
		Where: filter.Where,
	})
	if err != nil {
		return nil, err
	}

	ranked := e.fuser.Rerank(resp.Results, req.Options.TopK)
	return e.gateAndSynthesize(ctx, req.Question, ranked, nil, req, diag)
}

// askHybrid 混合策略：单次语义检索 → 混合打分重排。
func (e *Engine) askHybrid(ctx context.Context, req AskRequest, requestID string) (*AnswerResponse, error) {
	alpha := e.config.Alpha
	if req.Options.Alpha != nil {
		alpha = *req.Options.Alpha
	}
	diag := &Diagnostics{RequestID: requestID, Alpha: &alpha}

	resp, err := e.executor.Search(ctx, req.Options.Collection, req.Question, SearchOptions{TopK: req.Options.TopK})
	if err != nil {
		return nil, err
	}

	mixed := e.fuser.ApplyHybrid(req.Question, resp.Results, e.keyword, alpha)
	ranked := e.fuser.Rerank(mixed, req.Options.TopK)
	return e.gateAndSynthesize(ctx, req.Question, ranked, nil, req, diag)
}

// gateAndSynthesize 门控过滤后生成回答，或以证据不足短路。
func (e *Engine) gateAndSynthesize(ctx context.Context, question string, ranked []SearchResult, history []Turn, req AskRequest, diag *Diagnostics) (*AnswerResponse, error) {
	kept := e.gate.Filter(ranked, req.Options.MinScore)
	if e.collector != nil {
		e.collector.RecordEvidence(len(kept))
	}
	if len(kept) == 0 {
		return InsufficientResponse(req.Strategy, diag), nil
	}

	start := time.Now()
	resp, err := e.synthesizer.Synthesize(ctx, question, kept, history, req.Strategy, diag)
	if e.collector != nil {
		e.collector.RecordStage("synthesize", time.Since(start))
		if err == nil {
			e.collector.RecordLLMCall("synthesize")
		}
	}
	return resp, err
}

// transformStage 包装转换阶段的计时。转换失败不会冒泡到这里，
// 转换器内部已经降级为透传值。
func (e *Engine) transformStage(ctx context.Context, fn func(context.Context) []string) []string {
	start := time.Now()
	out := fn(ctx)
	if e.collector != nil {
		e.collector.RecordStage("transform", time.Since(start))
	}
	return out
}
