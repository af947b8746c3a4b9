package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig OpenAI 兼容客户端配置。
// BaseURL 可指向任何 OpenAI 兼容网关（如自建代理）。
type OpenAIConfig struct {
	APIKey         string        `json:"api_key" yaml:"api_key"`
	BaseURL        string        `json:"base_url,omitempty" yaml:"base_url"`
	Model          string        `json:"model" yaml:"model"`
	EmbeddingModel string        `json:"embedding_model,omitempty" yaml:"embedding_model"`
	Temperature    float32       `json:"temperature,omitempty" yaml:"temperature"`
	Timeout        time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// OpenAIClient 同时实现 Completer 和 Embedder。
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
	temperature    float32
	logger         *zap.Logger
}

// NewOpenAIClient 创建 OpenAI 兼容客户端
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		temperature:    cfg.Temperature,
		logger:         logger.With(zap.String("component", "openai_client")),
	}
}

// Complete 发起单次补全调用
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", NewError(ErrUpstreamError, "empty completion response", nil)
	}

	c.logger.Debug("completion finished",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// Embed 返回文本的向量表示
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          c.embeddingModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Data) == 0 {
		return nil, NewError(ErrUpstreamError, "empty embedding response", nil)
	}

	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float64(v)
	}
	return vec, nil
}

// mapOpenAIError 将 go-openai 的错误映射为结构化 Error。
func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return NewError(ErrUpstreamTimeout, "completion timed out", err)
		}
		return NewError(ErrUpstreamError, "openai request failed", err)
	}

	switch apiErr.HTTPStatusCode {
	case http.StatusBadRequest:
		return NewError(ErrInvalidRequest, apiErr.Message, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(ErrUnauthorized, apiErr.Message, err)
	case http.StatusTooManyRequests:
		return NewError(ErrRateLimited, apiErr.Message, err)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return NewError(ErrUpstreamTimeout, apiErr.Message, err)
	default:
		return NewError(ErrUpstreamError, apiErr.Message, err)
	}
}
