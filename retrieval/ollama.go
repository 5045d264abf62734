package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// DefaultEmbeddingModel is the Ollama model used when none is configured.
const DefaultEmbeddingModel = "nomic-embed-text"

// OllamaEmbedderOptions configure OllamaEmbedder.
type OllamaEmbedderOptions struct {
	Model string
	// BaseURL overrides OLLAMA_HOST.
	BaseURL string
}

// OllamaEmbedder calls the Ollama embed endpoint.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder creates an embedder for BaseURL, or for the server named
// by the environment when BaseURL is empty.
func NewOllamaEmbedder(optFns ...func(o *OllamaEmbedderOptions)) (*OllamaEmbedder, error) {
	opts := OllamaEmbedderOptions{Model: DefaultEmbeddingModel}
	for _, fn := range optFns {
		fn(&opts)
	}

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
	return &OllamaEmbedder{client: client, model: opts.Model}, nil
}

// Embed returns one vector per text.
func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, v32 := range resp.Embeddings {
		v := make([]float64, len(v32))
		for j, f := range v32 {
			v[j] = float64(f)
		}
		out[i] = v
	}
	return out, nil
}
