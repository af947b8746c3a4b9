// Package tutorflow provides a top-level convenience entry point for creating
// the adaptive answering engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/tutorflow"
//
//	engine, err := tutorflow.New(
//	    tutorflow.WithOpenAI("gpt-4o-mini"),
//	    tutorflow.WithSearcher(searcher),
//	)
//	resp, err := engine.Ask(ctx, rag.AskRequest{
//	    Question: "What is a binary search tree?",
//	    Strategy: rag.StrategyMultiQuery,
//	})
//
// This is a thin wrapper around [rag.NewEngine]; use the rag package directly
// when you need finer control over the pipeline components.
package tutorflow

import (
	"fmt"
	"os"

	"github.com/BaSui01/tutorflow/llm"
	"github.com/BaSui01/tutorflow/rag"
	"go.uber.org/zap"
)

// options collects facade-level construction state.
type options struct {
	config      rag.EngineConfig
	completer   llm.Completer
	openaiModel string
	searcher    rag.VectorSearcher
	logger      *zap.Logger
	engine      []rag.EngineOption
}

// Option configures the engine created by [New].
type Option func(*options)

// WithOpenAI creates an OpenAI-backed completer. API key from OPENAI_API_KEY env.
func WithOpenAI(model string) Option {
	return func(o *options) { o.openaiModel = model }
}

// WithCompleter sets a pre-built language model client.
func WithCompleter(c llm.Completer) Option {
	return func(o *options) { o.completer = c }
}

// WithSearcher sets the vector store client.
func WithSearcher(s rag.VectorSearcher) Option {
	return func(o *options) { o.searcher = s }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConfig overrides the default engine configuration.
func WithConfig(cfg rag.EngineConfig) Option {
	return func(o *options) { o.config = cfg }
}

// WithEngineOptions forwards options to [rag.NewEngine].
func WithEngineOptions(opts ...rag.EngineOption) Option {
	return func(o *options) { o.engine = append(o.engine, opts...) }
}

// New creates a [rag.Engine] with minimal configuration. A completer and a
// searcher must be provided.
func New(opts ...Option) (*rag.Engine, error) {
	o := &options{config: rag.DefaultEngineConfig()}
	for _, opt := range opts {
		opt(o)
	}

	if o.completer == nil && o.openaiModel != "" {
		o.completer = llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  o.openaiModel,
		}, o.logger)
	}
	if o.completer == nil {
		return nil, fmt.Errorf("a language model client is required: use WithOpenAI or WithCompleter")
	}
	if o.searcher == nil {
		return nil, fmt.Errorf("a vector searcher is required: use WithSearcher")
	}

	return rag.NewEngine(o.config, o.completer, o.searcher, o.logger, o.engine...), nil
}
