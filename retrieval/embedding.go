package retrieval

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"sync"

	"github.com/hupe1980/reviewmesh/core"
)

// Embedder turns texts into vectors, one per input and in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbeddingIndex ranks chunks by cosine similarity between the query vector
// and each chunk vector. Chunks with non-positive similarity are dropped.
type EmbeddingIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []entry
}

// NewEmbeddingIndex creates an empty index backed by embedder.
func NewEmbeddingIndex(embedder Embedder) *EmbeddingIndex {
	return &EmbeddingIndex{embedder: embedder}
}

// Chunk is an item to index.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Add embeds and stores chunks in a single Embed call.
func (x *EmbeddingIndex) Add(ctx context.Context, chunks ...Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i, c := range chunks {
		x.entries = append(x.entries, entry{
			chunk:  core.ContextChunk{ID: c.ID, Content: c.Content, Metadata: maps.Clone(c.Metadata)},
			vector: vectors[i],
		})
	}
	return nil
}

// Query returns up to limit chunks most similar to text.
func (x *EmbeddingIndex) Query(ctx context.Context, text string, limit int) ([]core.ContextChunk, error) {
	if limit <= 0 {
		return []core.ContextChunk{}, nil
	}
	vectors, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("embedder returned no query vector")
	}
	query := vectors[0]

	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]core.ContextChunk, 0, limit)
	for _, e := range x.entries {
		score, err := CosineSimilarity(query, e.vector)
		if err != nil || score <= 0 {
			continue
		}
		c := e.chunk
		c.Score = score
		c.Metadata = maps.Clone(c.Metadata)
		results = append(results, c)
	}
	return rank(results, limit), nil
}

// CosineSimilarity returns the cosine of the angle between a and b.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have same length: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errors.New("vectors cannot be empty")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
