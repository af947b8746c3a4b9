// Package metrics provides internal metrics collection for the answering
// pipeline. This package is internal and should not be imported by external
// projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// 请求结果标签
const (
	OutcomeAnswered     = "answered"
	OutcomeInsufficient = "insufficient"
	OutcomeError        = "error"
)

// Collector 管线指标收集器
type Collector struct {
	asksTotal      *prometheus.CounterVec
	askDuration    *prometheus.HistogramVec
	stageDuration  *prometheus.HistogramVec
	llmCallsTotal  *prometheus.CounterVec
	fanoutQueries  prometheus.Histogram
	evidenceKept   prometheus.Histogram

	logger *zap.Logger
}

// NewCollector 创建指标收集器。registerer 为 nil 时使用默认注册表。
func NewCollector(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Collector{
		asksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asks_total",
				Help:      "Total number of answering requests",
			},
			[]string{"strategy", "outcome"},
		),
		askDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ask_duration_seconds",
				Help:      "End-to-end answering request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		llmCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_calls_total",
				Help:      "Total number of language model invocations",
			},
			[]string{"purpose"},
		),
		fanoutQueries: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fanout_queries",
				Help:      "Number of query variants per multi-query fan-out",
				Buckets:   []float64{1, 2, 3, 5, 8, 13},
			},
		),
		evidenceKept: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evidence_kept",
				Help:      "Number of evidence snippets surviving the confidence gate",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
		),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// RecordAsk 记录一次回答请求
func (c *Collector) RecordAsk(strategy, outcome string, duration time.Duration) {
	c.asksTotal.WithLabelValues(strategy, outcome).Inc()
	c.askDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordStage 记录管线阶段耗时
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLLMCall 记录一次语言模型调用
func (c *Collector) RecordLLMCall(purpose string) {
	c.llmCallsTotal.WithLabelValues(purpose).Inc()
}

// RecordFanout 记录扇出变体数
func (c *Collector) RecordFanout(queries int) {
	c.fanoutQueries.Observe(float64(queries))
}

// RecordEvidence 记录门控后证据数
func (c *Collector) RecordEvidence(kept int) {
	c.evidenceKept.Observe(float64(kept))
}
