// Package anthropic provides a model.Generator backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/model"
)

// Options configures the Anthropic generator (temperature, model id,
// max tokens, API key, batch fan-out).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	// Adapter is reported through Info and keys cached responses.
	Adapter string
	// BatchConcurrency bounds parallel requests issued by BatchGenerate.
	BatchConcurrency int
	// Logger receives failed batch items.
	Logger logging.Logger
}

// Model wraps the Anthropic Messages API behind model.Generator.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:            anthropic.ModelClaude3_5Sonnet20241022,
		Temperature:      0.2,
		MaxTokens:        1024,
		BatchConcurrency: model.DefaultBatchConcurrency,
	}
}

// NewModel creates a new Anthropic generator using the official client.
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

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic generator from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Model{client: client, opts: opts}
}

// Generate sends prompt as a single user message and concatenates the text blocks of the reply.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       m.opts.Model,
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}

	return b.String(), nil
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
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic", Adapter: m.opts.Adapter}
}
