package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Loader 配置加载器
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{envPrefix: "TUTORFLOW"}
}

// WithConfigPath 设置 YAML 配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load 按 默认值 → YAML → 环境变量 的优先级加载配置
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv 用环境变量覆盖配置字段
func (l *Loader) applyEnv(cfg *Config) {
	setString(l.key("LLM_API_KEY"), &cfg.LLM.APIKey)
	setString(l.key("LLM_BASE_URL"), &cfg.LLM.BaseURL)
	setString(l.key("LLM_MODEL"), &cfg.LLM.Model)
	setString(l.key("LLM_EMBEDDING_MODEL"), &cfg.LLM.EmbeddingModel)

	setString(l.key("QDRANT_HOST"), &cfg.Qdrant.Host)
	setInt(l.key("QDRANT_PORT"), &cfg.Qdrant.Port)
	setString(l.key("QDRANT_BASE_URL"), &cfg.Qdrant.BaseURL)
	setString(l.key("QDRANT_API_KEY"), &cfg.Qdrant.APIKey)

	setString(l.key("ENGINE_COLLECTION"), &cfg.Engine.Collection)
	setInt(l.key("ENGINE_TOP_K"), &cfg.Engine.TopK)
	setInt(l.key("ENGINE_NUM_QUERIES"), &cfg.Engine.NumQueries)
	setFloat(l.key("ENGINE_MIN_SCORE"), &cfg.Engine.MinScore)
	setFloat(l.key("ENGINE_ALPHA"), &cfg.Engine.Alpha)
	setString(l.key("ENGINE_FANOUT_POLICY"), &cfg.Engine.FanoutPolicy)

	setString(l.key("LOG_LEVEL"), &cfg.Log.Level)
	setString(l.key("LOG_FORMAT"), &cfg.Log.Format)
}

func (l *Loader) key(suffix string) string {
	if l.envPrefix == "" {
		return suffix
	}
	return l.envPrefix + "_" + suffix
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
