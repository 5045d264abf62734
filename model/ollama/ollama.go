// Package ollama provides a model.Generator backed by a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/model"
	"github.com/ollama/ollama/api"
)

const (
	// DefaultModel is the generation model used when none is configured.
	DefaultModel = "qwen2.5-coder:7b"
	// DefaultURL is the default Ollama API endpoint.
	DefaultURL = "http://localhost:11434"
)

// Options configure the Ollama generator.
type Options struct {
	Model       string
	Temperature float64
	// NumPredict caps generated tokens; zero keeps the server default.
	NumPredict int
	// BaseURL overrides OLLAMA_HOST.
	BaseURL string
	Adapter string
	// BatchConcurrency bounds parallel requests issued by BatchGenerate.
	BatchConcurrency int
	// Logger receives failed batch items.
	Logger logging.Logger
}

// Model wraps the Ollama generate endpoint behind model.Generator.
type Model struct {
	client *api.Client
	opts   Options
}

// NewModel creates a generator talking to BaseURL, or to the server named by
// the environment when BaseURL is empty.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:            DefaultModel,
		Temperature:      0.2,
		BatchConcurrency: 1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	var client *api.Client
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama url: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	} else {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	}

	return NewModelFromClient(client, func(o *Options) { *o = opts }), nil
}

// NewModelFromClient creates a generator from an existing API client.
func NewModelFromClient(client *api.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Model: DefaultModel, Temperature: 0.2, BatchConcurrency: 1}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Model{client: client, opts: opts}
}

// Generate issues a non-streaming generate request.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	options := map[string]any{"temperature": m.opts.Temperature}
	if m.opts.NumPredict > 0 {
		options["num_predict"] = m.opts.NumPredict
	}

	var b strings.Builder
	err := m.client.Generate(ctx, &api.GenerateRequest{
		Model:   m.opts.Model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: options,
	}, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}

	return b.String(), nil
}

// BatchGenerate runs prompts over a bounded pool; a local server usually
// prefers BatchConcurrency 1.
func (m *Model) BatchGenerate(ctx context.Context, prompts []string) ([]string, error) {
	out, err := model.ParallelBatch(ctx, prompts, m.opts.BatchConcurrency, m.Generate)
	if err != nil {
		m.opts.Logger.Warn("batch generation failed", "model", m.opts.Model, "error", err.Error())
	}
	return out, nil
}

// Info returns metadata describing this generator.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "ollama", Adapter: m.opts.Adapter}
}
