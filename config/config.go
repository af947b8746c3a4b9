// =============================================================================
// 📦 TutorFlow 配置
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("TUTORFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"time"

	"github.com/BaSui01/tutorflow/llm"
	"github.com/BaSui01/tutorflow/rag"
)

// Config 是 TutorFlow 回答引擎的完整配置结构
type Config struct {
	// LLM 语言模型配置
	LLM llm.OpenAIConfig `yaml:"llm"`

	// Qdrant 向量存储配置
	Qdrant rag.QdrantConfig `yaml:"qdrant"`

	// Engine 回答引擎配置
	Engine EngineConfig `yaml:"engine"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`
}

// EngineConfig 回答引擎配置（YAML 侧的扁平视图）
type EngineConfig struct {
	Collection       string  `yaml:"collection"`
	TopK             int     `yaml:"top_k"`
	NumQueries       int     `yaml:"num_queries"`
	MinScore         float64 `yaml:"min_score"`
	Alpha            float64 `yaml:"alpha"`
	FanoutPolicy     string  `yaml:"fanout_policy"` // fail_fast / best_effort
	HistoryTurns     int     `yaml:"history_turns"`
	PreviewLength    int     `yaml:"preview_length"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // json / console
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		LLM: llm.OpenAIConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        60 * time.Second,
		},
		Qdrant: rag.QdrantConfig{
			Host:     "localhost",
			Port:     6333,
			Distance: "Cosine",
			Timeout:  30 * time.Second,
		},
		Engine: EngineConfig{
			Collection:       "course_material",
			TopK:             5,
			NumQueries:       3,
			MinScore:         0.3,
			Alpha:            0.7,
			FanoutPolicy:     string(rag.FanoutFailFast),
			HistoryTurns:     3,
			PreviewLength:    200,
			MaxContextTokens: 4096,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Engine.TopK <= 0 {
		return fmt.Errorf("engine.top_k must be > 0")
	}
	if c.Engine.NumQueries < 1 {
		return fmt.Errorf("engine.num_queries must be >= 1")
	}
	if c.Engine.MinScore < 0 || c.Engine.MinScore > 1 {
		return fmt.Errorf("engine.min_score must be in [0,1]")
	}
	if c.Engine.Alpha < 0 || c.Engine.Alpha > 1 {
		return fmt.Errorf("engine.alpha must be in [0,1]")
	}
	switch rag.FanoutPolicy(c.Engine.FanoutPolicy) {
	case rag.FanoutFailFast, rag.FanoutBestEffort:
	default:
		return fmt.Errorf("engine.fanout_policy must be fail_fast or best_effort, got %q", c.Engine.FanoutPolicy)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// ToEngineConfig 转换为 rag.EngineConfig
func (c *Config) ToEngineConfig() rag.EngineConfig {
	return rag.EngineConfig{
		Collection:   c.Engine.Collection,
		TopK:         c.Engine.TopK,
		NumQueries:   c.Engine.NumQueries,
		MinScore:     c.Engine.MinScore,
		Alpha:        c.Engine.Alpha,
		FanoutPolicy: rag.FanoutPolicy(c.Engine.FanoutPolicy),
		Transform: rag.QueryTransformConfig{
			MaxVariants:  c.Engine.NumQueries,
			HistoryTurns: c.Engine.HistoryTurns,
		},
		Synthesizer: rag.SynthesizerConfig{
			PreviewLength:    c.Engine.PreviewLength,
			MaxContextTokens: c.Engine.MaxContextTokens,
			HistoryTurns:     c.Engine.HistoryTurns,
		},
	}
}
