// Package openai provides a model.Generator backed by the OpenAI Chat
// Completions API. Each prompt becomes a single user message.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI generator.
// Fields mirror a subset of Chat Completion parameters; extend via
// functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
	// Adapter is reported through Info and keys cached responses.
	Adapter string
	// BatchConcurrency bounds parallel requests issued by BatchGenerate.
	BatchConcurrency int
	// Logger receives failed batch items.
	Logger logging.Logger
}

// Model wraps the OpenAI Chat Completions API behind model.Generator.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI generator using the official client.
// APIKey and BaseURL fall back to the SDK's environment lookup when empty.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI generator from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 1024,
		BatchConcurrency:    model.DefaultBatchConcurrency,
	}
}

// Generate returns the content of the first choice.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// BatchGenerate fans prompts out over a bounded pool; failed items are empty.
func (m *Model) BatchGenerate(ctx context.Context, prompts []string) ([]string, error) {
	out, err := model.ParallelBatch(ctx, prompts, m.opts.BatchConcurrency, m.Generate)
	if err != nil {
		m.opts.Logger.Warn("batch generation failed", "model", m.opts.Model, "error", err.Error())
	}
	return out, nil
}

// Info returns metadata describing this generator.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai", Adapter: m.opts.Adapter}
}
